package backendfake

import (
	"encoding/json"
	"net/http"
)

func (b *Backend) handleConsentCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActionType  string `json:"action_type"`
		FrameworkID string `json:"framework_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.lock.Lock()
	fail, required := b.failConsent, b.consent[req.ActionType]
	b.lock.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "consent service down"})
		return
	}

	resp := map[string]any{"status": "success", "required": required, "config": nil}
	if required {
		resp["config"] = map[string]any{
			"config_id":    7,
			"action_type":  req.ActionType,
			"action_label": req.ActionType,
			"is_enabled":   true,
			"consent_text": "I agree to the terms.",
			"framework_id": req.FrameworkID,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleConsentAccept(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Malformed request"})
		return
	}
	b.lock.Lock()
	b.accepted = append(b.accepted, body)
	b.lock.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}
