// Package policy holds the single authorization table of the application.
//
// The table maps every reachable (resource, operation) pair to the roles it
// admits. It is validated once when the Engine is built; after that,
// Authorize is a pure lookup and never fails.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services"
	"go.uber.org/zap"
)

// Capability is the decision for one action, used to render affordances.
type Capability struct {
	Action   models.ResourceAction `json:"action"`
	Decision models.AuthzDecision  `json:"decision"`
}

// Engine evaluates authorization decisions against a validated table.
// It is immutable and safe for concurrent use.
type Engine struct {
	version string
	rules   map[models.ResourceAction]map[models.Role]bool
	table   *Table
	logger  *zap.Logger
}

// NewEngine validates t and builds an Engine. Any gap or inconsistency in the
// table is returned as a configuration error.
func NewEngine(t *Table, logger *zap.Logger) (*Engine, error) {
	if err := Validate(t); err != nil {
		logger.Error("policy table rejected", zap.Error(err))
		return nil, err
	}

	rules := make(map[models.ResourceAction]map[models.Role]bool, len(t.Rules))
	for _, r := range t.Rules {
		set := make(map[models.Role]bool, len(r.Roles))
		for _, role := range r.Roles {
			set[role] = true
		}
		rules[r.Action()] = set
	}

	logger.Info("policy table loaded",
		zap.String("version", t.Version),
		zap.Int("rules", len(t.Rules)))

	return &Engine{
		version: t.Version,
		rules:   rules,
		table:   cloneTable(t),
		logger:  logger,
	}, nil
}

// Validate checks that every reachable action has exactly one rule, that no
// rule covers an action the application does not expose, and that each rule
// names at least one known role.
func Validate(t *Table) error {
	if t == nil {
		return services.ErrPolicyConfiguration.WithDetail("reason", "no policy table")
	}

	var problems []string
	if strings.TrimSpace(t.Version) == "" {
		problems = append(problems, "table has no version")
	}

	reachable := make(map[models.ResourceAction]bool)
	for _, a := range models.ReachableActions() {
		reachable[a] = true
	}

	seen := make(map[models.ResourceAction]int)
	for i, r := range t.Rules {
		a := r.Action()
		seen[a]++
		if !reachable[a] {
			problems = append(problems, fmt.Sprintf("rule %d: %s is not a reachable action", i, a))
		}
		if len(r.Roles) == 0 {
			problems = append(problems, fmt.Sprintf("rule %d: %s names no roles", i, a))
		}
		for _, role := range r.Roles {
			if !role.Valid() {
				problems = append(problems, fmt.Sprintf("rule %d: %s names unknown role %q", i, a, role))
			}
		}
	}

	for _, a := range models.ReachableActions() {
		switch n := seen[a]; {
		case n == 0:
			problems = append(problems, fmt.Sprintf("no rule for %s", a))
		case n > 1:
			problems = append(problems, fmt.Sprintf("%d rules for %s", n, a))
		}
	}

	if len(problems) > 0 {
		return services.NewDomainError(services.ErrorTypeConfiguration,
			"invalid policy table: "+strings.Join(problems, "; "), nil).
			WithDetail("version", t.Version).
			WithDetail("problems", problems)
	}
	return nil
}

// Version returns the version of the loaded table.
func (e *Engine) Version() string {
	return e.version
}

// Authorize decides whether p may perform action.
//
// Anonymous principals are denied everything except the public sign-in and
// sign-up actions. Otherwise the decision is membership of p's role in the
// rule for action.
func (e *Engine) Authorize(p *models.Principal, action models.ResourceAction) models.AuthzDecision {
	if action.IsPublic() {
		return models.Allow()
	}
	if p.IsAnonymous() {
		return models.Deny("sign in required to %s %s", action.Operation, action.Resource)
	}

	roles, ok := e.rules[action]
	if !ok {
		// Unreachable for validated tables and reachable actions.
		e.logger.Error("no policy rule for action",
			zap.String("action", action.String()),
			zap.String("version", e.version))
		return models.Deny("no policy rule for %s", action)
	}

	if !roles[p.Role] {
		e.logger.Debug("policy denied",
			zap.String("uid", p.UID),
			zap.String("role", string(p.Role)),
			zap.String("action", action.String()))
		return models.Deny("role %s may not %s %s", p.Role, action.Operation, action.Resource)
	}

	return models.Allow()
}

// Require is Authorize returning a forbidden error on denial.
func (e *Engine) Require(p *models.Principal, action models.ResourceAction) error {
	d := e.Authorize(p, action)
	if d.Allowed {
		return nil
	}
	if p.IsAnonymous() {
		return services.ErrUnauthenticated
	}
	return services.Forbidden(d.Reason)
}

// Capabilities evaluates every reachable action for p.
func (e *Engine) Capabilities(p *models.Principal) []Capability {
	actions := models.ReachableActions()
	caps := make([]Capability, 0, len(actions))
	for _, a := range actions {
		caps = append(caps, Capability{Action: a, Decision: e.Authorize(p, a)})
	}
	return caps
}

// AllowedRoles returns the roles admitted to action, in canonical order.
func (e *Engine) AllowedRoles(action models.ResourceAction) []models.Role {
	set := e.rules[action]
	var roles []models.Role
	for _, r := range models.AllRoles() {
		if set[r] {
			roles = append(roles, r)
		}
	}
	return roles
}

// Table returns a copy of the loaded table with rules sorted by resource and
// operation.
func (e *Engine) Table() *Table {
	t := cloneTable(e.table)
	sort.SliceStable(t.Rules, func(i, j int) bool {
		a, b := t.Rules[i], t.Rules[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.Operation < b.Operation
	})
	return t
}

func cloneTable(t *Table) *Table {
	out := &Table{Version: t.Version, Rules: make([]Rule, len(t.Rules))}
	for i, r := range t.Rules {
		out.Rules[i] = Rule{
			Resource:  r.Resource,
			Operation: r.Operation,
			Roles:     append([]models.Role(nil), r.Roles...),
		}
	}
	return out
}
