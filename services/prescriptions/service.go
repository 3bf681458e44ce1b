// Package prescriptions manages medication orders attached to appointments.
package prescriptions

import (
	"context"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/records"
	"go.uber.org/zap"
)

// Service manages prescriptions
type Service struct {
	prescriptions records.Collection[models.Prescription]
	appointments  records.Collection[models.Appointment]
	logger        *zap.Logger
}

// NewService creates a prescriptions service
func NewService(docs repositories.DocumentStore, logger *zap.Logger) *Service {
	return &Service{
		prescriptions: records.NewCollection[models.Prescription](docs, models.CollectionPrescriptions, services.ErrPrescriptionNotFound),
		appointments:  records.NewCollection[models.Appointment](docs, models.CollectionAppointments, services.ErrAppointmentNotFound),
		logger:        logger,
	}
}

// List returns every prescription ordered by patient name
func (s *Service) List(ctx context.Context) ([]*models.Prescription, error) {
	return s.prescriptions.Find(ctx, repositories.Query{OrderBy: "patientName"})
}

// Get loads one prescription
func (s *Service) Get(ctx context.Context, id string) (*models.Prescription, error) {
	return s.prescriptions.Get(ctx, id)
}

// Create stores a prescription for an existing appointment. The patient name
// is always taken from the appointment.
func (s *Service) Create(ctx context.Context, p *models.Prescription) (*models.Prescription, error) {
	if err := s.prepare(ctx, p); err != nil {
		return nil, err
	}

	id, err := s.prescriptions.Insert(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id

	s.logger.Info("prescription created",
		zap.String("prescription_id", id),
		zap.String("appointment_id", p.AppointmentID))
	return p, nil
}

// Update replaces a prescription, re-linking it to its appointment's patient
func (s *Service) Update(ctx context.Context, id string, p *models.Prescription) (*models.Prescription, error) {
	if _, err := s.prescriptions.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, p); err != nil {
		return nil, err
	}

	if err := s.prescriptions.Put(ctx, id, p); err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}

// Delete removes a prescription
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.prescriptions.Delete(ctx, id)
}

func (s *Service) prepare(ctx context.Context, p *models.Prescription) error {
	p.ID = ""
	if err := services.ValidateInput(p); err != nil {
		return err
	}

	appointment, err := s.appointments.Get(ctx, p.AppointmentID)
	if err != nil {
		return err
	}
	p.PatientName = appointment.Patient
	return nil
}
