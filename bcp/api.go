// Package bcp maps the BCP/DR module's REST operations onto plain methods.
// Results are returned as raw JSON.
package bcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-grc-client/httpclient"
)

const prefix = "/api/bcpdrp"

// API groups the BCP/DR resources. Every sub-facade shares the client
// passed to New.
type API struct {
	Plans                  *Plans
	Strategies             *Strategies
	OCR                    *OCR
	Evaluations            *Evaluations
	Questionnaires         *Questionnaires
	QuestionnaireWorkflow  *QuestionnaireWorkflow
	QuestionnaireTemplates *QuestionnaireTemplates
	Users                  *Users
	Approvals              *Approvals
	Assignments            *Assignments
	Dashboard              *Dashboard

	c *httpclient.Client
}

// New builds the facade on top of an authenticated client.
func New(c *httpclient.Client) *API {
	return &API{
		Plans:                  &Plans{c: c},
		Strategies:             &Strategies{c: c},
		OCR:                    &OCR{c: c},
		Evaluations:            &Evaluations{c: c},
		Questionnaires:         &Questionnaires{c: c},
		QuestionnaireWorkflow:  &QuestionnaireWorkflow{c: c},
		QuestionnaireTemplates: &QuestionnaireTemplates{c: c},
		Users:                  &Users{c: c},
		Approvals:              &Approvals{c: c},
		Assignments:            &Assignments{c: c},
		Dashboard:              &Dashboard{c: c},
		c:                      c,
	}
}

func path(segments ...string) string {
	p := prefix
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	return p + "/"
}

func get(ctx context.Context, c *httpclient.Client, p string, params url.Values) (json.RawMessage, error) {
	resp, err := c.Get(ctx, p, httpclient.WithQuery(params))
	if err != nil {
		return nil, err
	}
	return resp.JSON(), nil
}

func send(ctx context.Context, c *httpclient.Client, method, p string, data any, opts ...httpclient.RequestOption) (json.RawMessage, error) {
	resp, err := c.Do(ctx, method, p, data, opts...)
	if err != nil {
		return nil, err
	}
	return resp.JSON(), nil
}

// VendorUpload posts a vendor plan upload. data may be a JSON value or, with
// a Content-Type request option, a raw body.
func (a *API) VendorUpload(ctx context.Context, data any, opts ...httpclient.RequestOption) (json.RawMessage, error) {
	return send(ctx, a.c, http.MethodPost, path("vendor-upload"), data, opts...)
}

// Dropdowns returns the option lists used by plan and questionnaire forms.
func (a *API) Dropdowns(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, a.c, path("dropdowns"), params)
}

// Plans covers the BCP and DR plan records.
type Plans struct{ c *httpclient.Client }

// List returns the plans matching params.
func (p *Plans) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, p.c, path("plans"), params)
}

// Get returns a single plan.
func (p *Plans) Get(ctx context.Context, id string) (json.RawMessage, error) {
	return get(ctx, p.c, path("plans", id), nil)
}

// Create stores a new plan.
func (p *Plans) Create(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, p.c, http.MethodPost, path("plans"), data)
}

// Update applies a partial update to a plan.
func (p *Plans) Update(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return send(ctx, p.c, http.MethodPatch, path("plans", id), data)
}

// Delete removes a plan.
func (p *Plans) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, p.c, http.MethodDelete, path("plans", id), nil)
}

// Decision records an approve/reject decision with its comments.
func (p *Plans) Decision(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return send(ctx, p.c, http.MethodPatch, path("plans", id, "decision"), data)
}

// Evaluations returns the evaluations recorded against a plan.
func (p *Plans) Evaluations(ctx context.Context, id string) (json.RawMessage, error) {
	return get(ctx, p.c, path("evaluations", id), nil)
}

// Approve marks a plan approved.
func (p *Plans) Approve(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, p.c, http.MethodPost, path("plans", id, "approve"), nil)
}

// Reject marks a plan rejected.
func (p *Plans) Reject(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, p.c, http.MethodPost, path("plans", id, "reject"), nil)
}

// Strategies lists recovery strategies.
type Strategies struct{ c *httpclient.Client }

func (s *Strategies) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, s.c, path("strategies"), params)
}

// OCR covers plans uploaded as documents and their text extraction.
type OCR struct{ c *httpclient.Client }

// Plans lists uploaded plans awaiting or past extraction.
func (o *OCR) Plans(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, o.c, path("ocr", "plans"), params)
}

// PlanDetail returns one uploaded plan with its extracted fields.
func (o *OCR) PlanDetail(ctx context.Context, id string) (json.RawMessage, error) {
	return get(ctx, o.c, path("ocr", "plans", id), nil)
}

// Extract can run for minutes; bound it with ctx rather than a client timeout.
func (o *OCR) Extract(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return send(ctx, o.c, http.MethodPost, path("ocr", "plans", id, "extract"), data)
}

// UpdateStatus changes the review status of an uploaded plan.
func (o *OCR) UpdateStatus(ctx context.Context, id string, data any) (json.RawMessage, error) {
	return send(ctx, o.c, http.MethodPatch, path("ocr", "plans", id, "status"), data)
}

// Evaluations covers plan evaluations.
type Evaluations struct{ c *httpclient.Client }

func (e *Evaluations) List(ctx context.Context, planID string) (json.RawMessage, error) {
	return get(ctx, e.c, path("evaluations", planID), nil)
}

// Save stores the evaluation for planID.
func (e *Evaluations) Save(ctx context.Context, planID string, data any) (json.RawMessage, error) {
	return send(ctx, e.c, http.MethodPost, path("evaluations", planID, "save"), data)
}

// Questionnaires covers questionnaires and their assignments.
type Questionnaires struct{ c *httpclient.Client }

func (q *Questionnaires) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, q.c, path("questionnaires"), params)
}

func (q *Questionnaires) Get(ctx context.Context, id string) (json.RawMessage, error) {
	return get(ctx, q.c, path("questionnaires", id), nil)
}

// Details is the same resource as Get.
func (q *Questionnaires) Details(ctx context.Context, id string) (json.RawMessage, error) {
	return q.Get(ctx, id)
}

func (q *Questionnaires) Save(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, q.c, http.MethodPost, path("questionnaires", "save"), data)
}

func (q *Questionnaires) Assignments(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, q.c, path("questionnaires", "assignments"), params)
}

// SaveAnswers replaces the answers of an assignment.
func (q *Questionnaires) SaveAnswers(ctx context.Context, assignmentID string, data any) (json.RawMessage, error) {
	return send(ctx, q.c, http.MethodPut, path("questionnaires", "assignments", assignmentID, "save"), data)
}

func (q *Questionnaires) Approve(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, q.c, http.MethodPost, path("questionnaires", id, "approve"), nil)
}

func (q *Questionnaires) Reject(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, q.c, http.MethodPost, path("questionnaires", id, "reject"), nil)
}

// QuestionnaireWorkflow drives a questionnaire from creation through
// assignment to completion.
type QuestionnaireWorkflow struct{ c *httpclient.Client }

func (w *QuestionnaireWorkflow) CreateQuestionnaire(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, w.c, http.MethodPost, path("questionnaires", "save"), data)
}

func (w *QuestionnaireWorkflow) AssignQuestionnaire(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, w.c, http.MethodPost, path("approvals", "assignments"), data)
}

func (w *QuestionnaireWorkflow) WorkflowStatus(ctx context.Context, questionnaireID string) (json.RawMessage, error) {
	return get(ctx, w.c, path("questionnaires", questionnaireID, "workflow"), nil)
}

func (w *QuestionnaireWorkflow) CompleteWorkflow(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, w.c, http.MethodPost, path("questionnaire-workflow", "complete"), data)
}

// QuestionnaireTemplates covers reusable questionnaire templates.
type QuestionnaireTemplates struct{ c *httpclient.Client }

func (t *QuestionnaireTemplates) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, t.c, path("questionnaire-templates"), params)
}

func (t *QuestionnaireTemplates) Get(ctx context.Context, id string) (json.RawMessage, error) {
	return get(ctx, t.c, path("questionnaire-templates", id), nil)
}

func (t *QuestionnaireTemplates) Save(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, t.c, http.MethodPost, path("questionnaire-templates", "save"), data)
}

// Users lists the users that plans and questionnaires can be assigned to.
type Users struct{ c *httpclient.Client }

func (u *Users) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, u.c, path("users"), params)
}

// Approvals covers approval queues and assignments.
type Approvals struct{ c *httpclient.Client }

func (a *Approvals) List(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, a.c, path("approvals"), params)
}

func (a *Approvals) CreateAssignment(ctx context.Context, data any) (json.RawMessage, error) {
	return send(ctx, a.c, http.MethodPost, path("approvals", "assignments"), data)
}

// MyApprovals returns the approvals waiting on the logged-in user.
func (a *Approvals) MyApprovals(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return get(ctx, a.c, path("my-approvals"), params)
}

// Assignments covers individual questionnaire responses.
type Assignments struct{ c *httpclient.Client }

// ResponseDetails returns an assignment response with its answers.
func (a *Assignments) ResponseDetails(ctx context.Context, id string) (json.RawMessage, error) {
	return get(ctx, a.c, path("questionnaires", "assignments"), url.Values{"assignment_response_id": {id}})
}

func (a *Assignments) Approve(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, a.c, http.MethodPost, path("questionnaires", "assignments", id, "approve"), nil)
}

func (a *Assignments) Reject(ctx context.Context, id string) (json.RawMessage, error) {
	return send(ctx, a.c, http.MethodPost, path("questionnaires", "assignments", id, "reject"), nil)
}
