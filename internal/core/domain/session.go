package domain

import "time"

// AdvanceStatusProposed marks a step submission whose result awaits approval.
const AdvanceStatusProposed AdvanceStatus = "proposed"

// SessionConfig is the configuration snapshot taken when a session starts.
type SessionConfig struct {
	Endpoint string `json:"endpoint"`
	Debug    bool   `json:"debug"`
}

// StepOutcome is the result of one orchestrator operation.
type StepOutcome struct {
	SessionID     string         `json:"session_id"`
	State         StepState      `json:"state"`
	Status        AdvanceStatus  `json:"status"`
	ApprovalsHeld int            `json:"approvals_held"`
	Record        WorkflowRecord `json:"record"`
}

// SessionSnapshot is a read-only copy of a session.
type SessionSnapshot struct {
	ID            string             `json:"id"`
	State         StepState          `json:"state"`
	Record        WorkflowRecord     `json:"record"`
	Approvals     map[StepState]bool `json:"approvals"`
	ApprovalsHeld int                `json:"approvals_held"`
	Busy          bool               `json:"busy"`
	Config        SessionConfig      `json:"config"`
	Probe         *ProbeStatus       `json:"probe,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Draft is everything the document assembler needs.
type Draft struct {
	SessionID string
	State     StepState
	Record    WorkflowRecord
}

// ProbeStatus is the cached outcome of a connectivity probe.
type ProbeStatus struct {
	Endpoint   string    `json:"endpoint"`
	Reachable  bool      `json:"reachable"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	Cached     bool      `json:"cached"`
}
