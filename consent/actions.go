package consent

// Action types that may require consent before they run.
const (
	ActionCreatePolicy     = "create_policy"
	ActionCreateCompliance = "create_compliance"
	ActionCreateAudit      = "create_audit"
	ActionCreateIncident   = "create_incident"
	ActionCreateRisk       = "create_risk"
	ActionCreateEvent      = "create_event"
	ActionUploadPolicy     = "upload_policy"
	ActionUploadAudit      = "upload_audit"
	ActionUploadIncident   = "upload_incident"
	ActionUploadRisk       = "upload_risk"
	ActionUploadEvent      = "upload_event"
)

var actionLabels = map[string]string{
	ActionCreatePolicy:     "Create Policy",
	ActionCreateCompliance: "Create Compliance",
	ActionCreateAudit:      "Create Audit",
	ActionCreateIncident:   "Create Incident",
	ActionCreateRisk:       "Create Risk",
	ActionCreateEvent:      "Create Event",
	ActionUploadPolicy:     "Upload in Policy",
	ActionUploadAudit:      "Upload in Audit",
	ActionUploadIncident:   "Upload in Incident",
	ActionUploadRisk:       "Upload in Risk",
	ActionUploadEvent:      "Upload in Event",
}

// Actions lists every known action type in a stable order.
func Actions() []string {
	return []string{
		ActionCreatePolicy, ActionCreateCompliance, ActionCreateAudit,
		ActionCreateIncident, ActionCreateRisk, ActionCreateEvent,
		ActionUploadPolicy, ActionUploadAudit, ActionUploadIncident,
		ActionUploadRisk, ActionUploadEvent,
	}
}

// ActionLabel returns the display label, or actionType itself when unknown.
func ActionLabel(actionType string) string {
	if l, ok := actionLabels[actionType]; ok {
		return l
	}
	return actionType
}
