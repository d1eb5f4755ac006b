package audit

import "time"

// Action names a credential lifecycle transition.
type Action string

const (
	ActionCredentialGenerated Action = "credential_generated"
	ActionCredentialRevoked   Action = "credential_revoked"
	ActionCredentialVerified  Action = "credential_verified"
	ActionBudgetRejected      Action = "budget_rejected"
)

// Event is emitted by the credential manager. It carries identifiers and
// outcomes only; claim values never appear here.
type Event struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Action         Action    `json:"action"`
	SubjectID      string    `json:"subject_id"`
	CredentialID   string    `json:"credential_id,omitempty"`
	CredentialType string    `json:"credential_type,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Epsilon        float64   `json:"epsilon,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
}
