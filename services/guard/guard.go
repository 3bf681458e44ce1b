// Package guard gates navigation and actions on the current principal.
package guard

import (
	"context"

	"github.com/amoreldmija/hospital/models"
	"go.uber.org/zap"
)

// Outcome is the result of a guard check.
type Outcome int

const (
	Proceed Outcome = iota
	RedirectToLogin
	RedirectToHome
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToHome:
		return "redirect_to_home"
	}
	return "unknown"
}

// Authorizer is the policy engine.
type Authorizer interface {
	Authorize(p *models.Principal, action models.ResourceAction) models.AuthzDecision
}

// PrincipalSource yields the current principal, typically the session store.
type PrincipalSource interface {
	Current() *models.Principal
}

// Recorder receives audit records of denials.
type Recorder interface {
	Record(ctx context.Context, log *models.AuditLog)
}

// Result carries the outcome and, on denial, the policy reason.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Guard maps authorization decisions to navigation outcomes. It keeps no
// state of its own: every check reads the principal afresh.
type Guard struct {
	policy   Authorizer
	source   PrincipalSource
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a Guard
type Option func(*Guard)

// WithSource binds the guard to a principal source for Check.
func WithSource(source PrincipalSource) Option {
	return func(g *Guard) { g.source = source }
}

// WithRecorder audits every denial.
func WithRecorder(r Recorder) Option {
	return func(g *Guard) { g.recorder = r }
}

// New creates a Guard
func New(policy Authorizer, logger *zap.Logger, opts ...Option) *Guard {
	g := &Guard{policy: policy, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates action for the source's current principal. Without a
// source the principal is anonymous.
func (g *Guard) Check(ctx context.Context, action models.ResourceAction) Result {
	p := models.Anonymous
	if g.source != nil {
		p = g.source.Current()
	}
	return g.CheckPrincipal(ctx, p, action)
}

// CheckPrincipal evaluates action for p.
//
// Public actions always proceed. An anonymous principal is sent to the login
// page; a signed-in principal lacking permission is sent home.
func (g *Guard) CheckPrincipal(ctx context.Context, p *models.Principal, action models.ResourceAction) Result {
	if action.IsPublic() {
		return Result{Outcome: Proceed}
	}

	if p.IsAnonymous() {
		res := Result{Outcome: RedirectToLogin, Reason: "sign in required"}
		g.deny(ctx, p, action, res)
		return res
	}

	d := g.policy.Authorize(p, action)
	if d.Allowed {
		g.logger.Debug("guard proceed",
			zap.String("uid", p.UID),
			zap.String("action", action.String()))
		return Result{Outcome: Proceed}
	}

	res := Result{Outcome: RedirectToHome, Reason: d.Reason}
	g.deny(ctx, p, action, res)
	return res
}

func (g *Guard) deny(ctx context.Context, p *models.Principal, action models.ResourceAction, res Result) {
	g.logger.Warn("guard denied",
		zap.Stringer("principal", p),
		zap.String("action", action.String()),
		zap.Stringer("outcome", res.Outcome),
		zap.String("reason", res.Reason))

	if g.recorder == nil {
		return
	}

	outcome := models.AuditOutcomeRedirectToHome
	if res.Outcome == RedirectToLogin {
		outcome = models.AuditOutcomeRedirectToLogin
	}
	g.recorder.Record(ctx, models.NewAuditLog(p, action, outcome).
		WithReason(res.Reason).
		WithRequest(RequestIDFromContext(ctx)))
}

type requestIDKey struct{}

// WithRequestID annotates ctx with a request id carried into audit records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
