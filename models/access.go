package models

import "fmt"

// ResourceKind names a protected collection.
type ResourceKind string

const (
	ResourcePatients      ResourceKind = "patients"
	ResourceDoctors       ResourceKind = "doctors"
	ResourceAppointments  ResourceKind = "appointments"
	ResourcePrescriptions ResourceKind = "prescriptions"
	ResourceBilling       ResourceKind = "billing"
	ResourceUsers         ResourceKind = "users"

	// ResourceSession is the pseudo-resource for the public sign-in and
	// sign-up actions.
	ResourceSession ResourceKind = "session"
)

// AllResources returns every protected resource kind.
func AllResources() []ResourceKind {
	return []ResourceKind{
		ResourcePatients,
		ResourceDoctors,
		ResourceAppointments,
		ResourcePrescriptions,
		ResourceBilling,
		ResourceUsers,
	}
}

// Valid reports whether k is a protected resource kind.
func (k ResourceKind) Valid() bool {
	for _, r := range AllResources() {
		if r == k {
			return true
		}
	}
	return false
}

// Operation is what a caller wants to do with a resource.
type Operation string

const (
	OpView    Operation = "view"
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpApprove Operation = "approve"

	OpSignIn Operation = "sign_in"
	OpSignUp Operation = "sign_up"
)

// AllOperations returns the operations applicable to protected resources.
func AllOperations() []Operation {
	return []Operation{OpView, OpCreate, OpUpdate, OpDelete, OpApprove}
}

// Valid reports whether o is an operation on protected resources.
func (o Operation) Valid() bool {
	for _, op := range AllOperations() {
		if op == o {
			return true
		}
	}
	return false
}

// ResourceAction is a (resource, operation) pair subject to authorization.
type ResourceAction struct {
	Resource  ResourceKind `json:"resource" yaml:"resource"`
	Operation Operation    `json:"operation" yaml:"operation"`
}

// Action builds a ResourceAction.
func Action(resource ResourceKind, op Operation) ResourceAction {
	return ResourceAction{Resource: resource, Operation: op}
}

var (
	ActionSignIn = ResourceAction{Resource: ResourceSession, Operation: OpSignIn}
	ActionSignUp = ResourceAction{Resource: ResourceSession, Operation: OpSignUp}
)

// IsPublic reports whether the action is available without a session.
func (a ResourceAction) IsPublic() bool {
	return a == ActionSignIn || a == ActionSignUp
}

// String renders "resource.operation".
func (a ResourceAction) String() string {
	return fmt.Sprintf("%s.%s", a.Resource, a.Operation)
}

// ReachableActions lists every action the application surfaces. Each of them
// must be covered by exactly one policy rule.
func ReachableActions() []ResourceAction {
	actions := make([]ResourceAction, 0, 25)
	for _, r := range AllResources() {
		for _, op := range []Operation{OpView, OpCreate, OpUpdate, OpDelete} {
			actions = append(actions, Action(r, op))
		}
	}
	return append(actions, Action(ResourceAppointments, OpApprove))
}

// AuthzDecision is the outcome of a policy evaluation. Reason is set on denial.
type AuthzDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns an allowing decision.
func Allow() AuthzDecision {
	return AuthzDecision{Allowed: true}
}

// Deny returns a denying decision with a reason.
func Deny(format string, args ...interface{}) AuthzDecision {
	return AuthzDecision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}
