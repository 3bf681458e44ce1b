package policy

import (
	"github.com/amoreldmija/hospital/models"
)

// DefaultVersion identifies the built-in table.
const DefaultVersion = "2024-source-latest"

// Rule admits an explicit set of roles to one (resource, operation) pair.
type Rule struct {
	Resource  models.ResourceKind `yaml:"resource" json:"resource"`
	Operation models.Operation    `yaml:"operation" json:"operation"`
	Roles     []models.Role       `yaml:"roles" json:"roles"`
}

// Action returns the pair the rule covers.
func (r Rule) Action() models.ResourceAction {
	return models.Action(r.Resource, r.Operation)
}

// Table is a versioned rule set.
type Table struct {
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// DefaultTable returns the built-in matrix. Every call returns a fresh copy.
func DefaultTable() *Table {
	var (
		admin   = models.RoleAdmin
		doctor  = models.RoleDoctor
		patient = models.RolePatient
		staff   = []models.Role{admin, doctor}
		all     = []models.Role{admin, doctor, patient}
	)

	t := &Table{Version: DefaultVersion}
	add := func(resource models.ResourceKind, op models.Operation, roles ...models.Role) {
		t.Rules = append(t.Rules, Rule{
			Resource:  resource,
			Operation: op,
			Roles:     append([]models.Role(nil), roles...),
		})
	}

	add(models.ResourcePatients, models.OpView, staff...)
	add(models.ResourcePatients, models.OpCreate, staff...)
	add(models.ResourcePatients, models.OpUpdate, staff...)
	add(models.ResourcePatients, models.OpDelete, staff...)

	add(models.ResourceDoctors, models.OpView, all...)
	add(models.ResourceDoctors, models.OpCreate, admin)
	add(models.ResourceDoctors, models.OpUpdate, admin)
	add(models.ResourceDoctors, models.OpDelete, admin)

	add(models.ResourceAppointments, models.OpView, all...)
	add(models.ResourceAppointments, models.OpCreate, admin, patient)
	add(models.ResourceAppointments, models.OpUpdate, doctor)
	add(models.ResourceAppointments, models.OpDelete, all...)
	add(models.ResourceAppointments, models.OpApprove, doctor)

	add(models.ResourcePrescriptions, models.OpView, all...)
	add(models.ResourcePrescriptions, models.OpCreate, doctor)
	add(models.ResourcePrescriptions, models.OpUpdate, doctor)
	add(models.ResourcePrescriptions, models.OpDelete, doctor)

	add(models.ResourceBilling, models.OpView, staff...)
	add(models.ResourceBilling, models.OpCreate, staff...)
	add(models.ResourceBilling, models.OpUpdate, staff...)
	add(models.ResourceBilling, models.OpDelete, staff...)

	add(models.ResourceUsers, models.OpView, admin)
	add(models.ResourceUsers, models.OpCreate, admin)
	add(models.ResourceUsers, models.OpUpdate, admin)
	add(models.ResourceUsers, models.OpDelete, admin)

	return t
}
