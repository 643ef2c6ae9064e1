package bcp

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-grc-client/httpclient"
	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
)

// Dashboard view names.
const (
	ViewOverview         = "overview"
	ViewKPI              = "kpi"
	ViewPlans            = "plans"
	ViewEvaluations      = "evaluations"
	ViewEvaluationScores = "evaluation-scores"
	ViewTesting          = "testing"
	ViewRisks            = "risks"
	ViewTemporal         = "temporal"
)

// DashboardViews lists every view View accepts.
var DashboardViews = []string{
	ViewOverview, ViewKPI, ViewPlans, ViewEvaluations,
	ViewEvaluationScores, ViewTesting, ViewRisks, ViewTemporal,
}

// Dashboard reads the aggregated dashboard views.
type Dashboard struct{ c *httpclient.Client }

// View fetches a dashboard view by name.
func (d *Dashboard) View(ctx context.Context, view string) (json.RawMessage, error) {
	for _, v := range DashboardViews {
		if v == view {
			return get(ctx, d.c, path("dashboard", view), nil)
		}
	}
	return nil, apperrors.Wrapf(apperrors.ErrUnsupported, "dashboard view %q", view)
}

func (d *Dashboard) Overview(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewOverview)
}

func (d *Dashboard) KPI(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewKPI)
}

func (d *Dashboard) Plans(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewPlans)
}

func (d *Dashboard) Evaluations(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewEvaluations)
}

func (d *Dashboard) EvaluationScores(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewEvaluationScores)
}

func (d *Dashboard) Testing(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewTesting)
}

func (d *Dashboard) Risks(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewRisks)
}

func (d *Dashboard) Temporal(ctx context.Context) (json.RawMessage, error) {
	return d.View(ctx, ViewTemporal)
}
