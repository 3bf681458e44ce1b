package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditOutcome is what happened to an audited action.
type AuditOutcome string

const (
	AuditOutcomeAllowed         AuditOutcome = "allowed"
	AuditOutcomeDenied          AuditOutcome = "denied"
	AuditOutcomeRedirectToLogin AuditOutcome = "redirect_to_login"
	AuditOutcomeRedirectToHome  AuditOutcome = "redirect_to_home"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	UID        string       `json:"uid,omitempty" db:"uid"`
	Role       Role         `json:"role,omitempty" db:"role"`
	Resource   ResourceKind `json:"resource" db:"resource"`
	Operation  Operation    `json:"operation" db:"operation"`
	ResourceID string       `json:"resource_id,omitempty" db:"resource_id"`
	Outcome    AuditOutcome `json:"outcome" db:"outcome"`
	Reason     string       `json:"reason,omitempty" db:"reason"`
	RequestID  string       `json:"request_id,omitempty" db:"request_id"`
	Timestamp  time.Time    `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog for an action taken by p.
func NewAuditLog(p *Principal, action ResourceAction, outcome AuditOutcome) *AuditLog {
	log := &AuditLog{
		ID:        uuid.New(),
		Resource:  action.Resource,
		Operation: action.Operation,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
	if !p.IsAnonymous() {
		log.UID = p.UID
		log.Role = p.Role
	}
	return log
}

// WithResource sets the affected document id
func (a *AuditLog) WithResource(id string) *AuditLog {
	a.ResourceID = id
	return a
}

// WithReason sets the denial reason
func (a *AuditLog) WithReason(reason string) *AuditLog {
	a.Reason = reason
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}
