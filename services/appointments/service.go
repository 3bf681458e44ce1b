// Package appointments books, reschedules and approves appointments.
package appointments

import (
	"context"
	"sync"
	"time"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/records"
	"go.uber.org/zap"
)

// UnknownDoctor is shown for appointments whose doctor record is gone.
const UnknownDoctor = "Unknown Doctor"

// Service manages appointments.
//
// Booking is serialized within the process: the conflict check and the
// sequential id assignment happen under one lock. Two processes booking
// against the same store can still race.
type Service struct {
	appointments records.Collection[models.Appointment]
	doctors      records.Collection[models.Doctor]
	logger       *zap.Logger

	mu sync.Mutex
}

// NewService creates an appointments service
func NewService(docs repositories.DocumentStore, logger *zap.Logger) *Service {
	return &Service{
		appointments: records.NewCollection[models.Appointment](docs, models.CollectionAppointments, services.ErrAppointmentNotFound),
		doctors:      records.NewCollection[models.Doctor](docs, models.CollectionDoctors, services.ErrDoctorNotFound),
		logger:       logger,
	}
}

// List returns every appointment in date order, each carrying its doctor's name.
func (s *Service) List(ctx context.Context) ([]*models.Appointment, error) {
	appointments, err := s.appointments.Find(ctx, repositories.Query{OrderBy: "date"})
	if err != nil {
		return nil, err
	}

	doctors, err := s.doctors.Find(ctx, repositories.Query{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(doctors))
	for _, d := range doctors {
		names[d.ID] = d.Name
	}

	for _, a := range appointments {
		a.DoctorName = UnknownDoctor
		if name, ok := names[a.Doctor]; ok {
			a.DoctorName = name
		}
	}
	return appointments, nil
}

// Get loads one appointment with its doctor's name
func (s *Service) Get(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.attachDoctorName(ctx, a)
	return a, nil
}

// Create books an appointment. A patient always books for themself: the
// patient name is replaced by the caller's own name.
func (s *Service) Create(ctx context.Context, caller *models.Principal, a *models.Appointment) (*models.Appointment, error) {
	s.prepare(caller, a)
	if err := services.ValidateInput(a); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSlot(ctx, a.Date, ""); err != nil {
		return nil, err
	}

	next, err := s.nextAppointmentID(ctx)
	if err != nil {
		return nil, err
	}
	a.AppointmentID = next

	id, err := s.appointments.Insert(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	s.attachDoctorName(ctx, a)

	s.logger.Info("appointment booked",
		zap.String("appointment_id", id),
		zap.Int("number", next),
		zap.String("uid", uidOf(caller)))
	return a, nil
}

// Update reschedules or edits an appointment. Any edit withdraws approval.
func (s *Service) Update(ctx context.Context, caller *models.Principal, id string, a *models.Appointment) (*models.Appointment, error) {
	s.prepare(caller, a)
	if err := services.ValidateInput(a); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, a.Date, id); err != nil {
		return nil, err
	}

	a.AppointmentID = existing.AppointmentID
	if err := s.appointments.Put(ctx, id, a); err != nil {
		return nil, err
	}
	a.ID = id
	s.attachDoctorName(ctx, a)

	s.logger.Info("appointment updated", zap.String("appointment_id", id), zap.String("uid", uidOf(caller)))
	return a, nil
}

// Delete cancels an appointment
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("appointment deleted", zap.String("appointment_id", id))
	return nil
}

// Approve marks an appointment approved. Approving twice is a no-op.
func (s *Service) Approve(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !a.Approved {
		if err := s.appointments.Merge(ctx, id, map[string]interface{}{"approved": true}); err != nil {
			return nil, err
		}
		a.Approved = true
		s.logger.Info("appointment approved", zap.String("appointment_id", id))
	}

	s.attachDoctorName(ctx, a)
	return a, nil
}

func (s *Service) prepare(caller *models.Principal, a *models.Appointment) {
	a.ID = ""
	a.DoctorName = ""
	a.Approved = false
	a.Date = a.Date.UTC()
	if caller.HasRole(models.RolePatient) {
		a.Patient = caller.FullName()
	}
}

// checkSlot rejects a date already taken by an appointment other than except.
func (s *Service) checkSlot(ctx context.Context, date time.Time, except string) error {
	taken, err := s.appointments.Find(ctx, repositories.Where("date", date))
	if err != nil {
		return err
	}
	for _, other := range taken {
		if other.ID != except {
			return services.ErrAppointmentConflict.WithDetail("date", date.Format(time.RFC3339))
		}
	}
	return nil
}

func (s *Service) nextAppointmentID(ctx context.Context) (int, error) {
	last, err := s.appointments.Find(ctx, repositories.Query{
		OrderBy:    "appointmentId",
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return 0, err
	}
	if len(last) == 0 {
		return 1, nil
	}
	return last[0].AppointmentID + 1, nil
}

func (s *Service) attachDoctorName(ctx context.Context, a *models.Appointment) {
	a.DoctorName = UnknownDoctor
	d, err := s.doctors.Get(ctx, a.Doctor)
	if err != nil {
		if !services.IsNotFoundError(err) {
			s.logger.Warn("failed to load doctor", zap.String("doctor_id", a.Doctor), zap.Error(err))
		}
		return
	}
	a.DoctorName = d.Name
}

func uidOf(p *models.Principal) string {
	if p.IsAnonymous() {
		return ""
	}
	return p.UID
}
