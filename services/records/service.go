// Package records manages patient, doctor and billing records and assembles
// patient charts.
package records

import (
	"context"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"go.uber.org/zap"
)

// Service manages hospital records. Callers are expected to have passed the
// guard for the matching ResourceAction.
type Service struct {
	patients      Collection[models.Patient]
	doctors       Collection[models.Doctor]
	billing       Collection[models.Bill]
	appointments  Collection[models.Appointment]
	prescriptions Collection[models.Prescription]
	logger        *zap.Logger
}

// NewService creates a records service
func NewService(docs repositories.DocumentStore, logger *zap.Logger) *Service {
	return &Service{
		patients:      NewCollection[models.Patient](docs, models.CollectionPatients, services.ErrPatientNotFound),
		doctors:       NewCollection[models.Doctor](docs, models.CollectionDoctors, services.ErrDoctorNotFound),
		billing:       NewCollection[models.Bill](docs, models.CollectionBilling, services.ErrBillNotFound),
		appointments:  NewCollection[models.Appointment](docs, models.CollectionAppointments, services.ErrAppointmentNotFound),
		prescriptions: NewCollection[models.Prescription](docs, models.CollectionPrescriptions, services.ErrPrescriptionNotFound),
		logger:        logger,
	}
}

// Patients

// ListPatients returns every patient ordered by name
func (s *Service) ListPatients(ctx context.Context) ([]*models.Patient, error) {
	return s.patients.Find(ctx, repositories.Query{OrderBy: "name"})
}

// GetPatient loads one patient
func (s *Service) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	return s.patients.Get(ctx, id)
}

// CreatePatient validates and stores a new patient
func (s *Service) CreatePatient(ctx context.Context, p *models.Patient) (*models.Patient, error) {
	if err := services.ValidateInput(p); err != nil {
		return nil, err
	}
	if p.DoctorID != "" {
		if _, err := s.doctors.Get(ctx, p.DoctorID); err != nil {
			return nil, err
		}
	}

	p.ID = ""
	id, err := s.patients.Insert(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id

	s.logger.Info("patient created", zap.String("patient_id", id))
	return p, nil
}

// UpdatePatient replaces the fields of an existing patient
func (s *Service) UpdatePatient(ctx context.Context, id string, p *models.Patient) (*models.Patient, error) {
	if err := services.ValidateInput(p); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, id); err != nil {
		return nil, err
	}
	if p.DoctorID != "" {
		if _, err := s.doctors.Get(ctx, p.DoctorID); err != nil {
			return nil, err
		}
	}

	p.ID = ""
	if err := s.patients.Put(ctx, id, p); err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}

// DeletePatient removes a patient
func (s *Service) DeletePatient(ctx context.Context, id string) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("patient deleted", zap.String("patient_id", id))
	return nil
}

// Chart gathers a patient's appointments, bills and prescriptions. Related
// records are linked by the patient's name.
func (s *Service) Chart(ctx context.Context, id string) (*models.PatientChart, error) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	appointments, err := s.appointments.Find(ctx, repositories.Query{
		Where:   []repositories.Condition{{Field: "patient", Value: patient.Name}},
		OrderBy: "date",
	})
	if err != nil {
		return nil, err
	}

	bills, err := s.billing.Find(ctx, repositories.Query{
		Where:   []repositories.Condition{{Field: "patientName", Value: patient.Name}},
		OrderBy: "date",
	})
	if err != nil {
		return nil, err
	}

	prescriptions, err := s.prescriptions.Find(ctx, repositories.Where("patientName", patient.Name))
	if err != nil {
		return nil, err
	}

	return &models.PatientChart{
		Patient:       patient,
		Appointments:  appointments,
		Billing:       bills,
		Prescriptions: prescriptions,
	}, nil
}

// Doctors

// ListDoctors returns every doctor ordered by name
func (s *Service) ListDoctors(ctx context.Context) ([]*models.Doctor, error) {
	return s.doctors.Find(ctx, repositories.Query{OrderBy: "name"})
}

// GetDoctor loads one doctor
func (s *Service) GetDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	return s.doctors.Get(ctx, id)
}

// CreateDoctor validates and stores a new doctor
func (s *Service) CreateDoctor(ctx context.Context, d *models.Doctor) (*models.Doctor, error) {
	if err := services.ValidateInput(d); err != nil {
		return nil, err
	}

	d.ID = ""
	id, err := s.doctors.Insert(ctx, d)
	if err != nil {
		return nil, err
	}
	d.ID = id

	s.logger.Info("doctor created", zap.String("doctor_id", id))
	return d, nil
}

// UpdateDoctor replaces the fields of an existing doctor
func (s *Service) UpdateDoctor(ctx context.Context, id string, d *models.Doctor) (*models.Doctor, error) {
	if err := services.ValidateInput(d); err != nil {
		return nil, err
	}
	if _, err := s.doctors.Get(ctx, id); err != nil {
		return nil, err
	}

	d.ID = ""
	if err := s.doctors.Put(ctx, id, d); err != nil {
		return nil, err
	}
	d.ID = id
	return d, nil
}

// DeleteDoctor removes a doctor. Appointments that reference the doctor are
// kept and render as "Unknown Doctor".
func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("doctor deleted", zap.String("doctor_id", id))
	return nil
}

// Billing

// ListBills returns every bill, newest first
func (s *Service) ListBills(ctx context.Context) ([]*models.Bill, error) {
	return s.billing.Find(ctx, repositories.Query{OrderBy: "date", Descending: true})
}

// GetBill loads one bill
func (s *Service) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	return s.billing.Get(ctx, id)
}

// CreateBill validates and stores a new bill
func (s *Service) CreateBill(ctx context.Context, b *models.Bill) (*models.Bill, error) {
	if err := services.ValidateInput(b); err != nil {
		return nil, err
	}

	b.ID = ""
	b.Date = b.Date.UTC()
	id, err := s.billing.Insert(ctx, b)
	if err != nil {
		return nil, err
	}
	b.ID = id

	s.logger.Info("bill created", zap.String("bill_id", id), zap.String("invoice_no", b.InvoiceNo))
	return b, nil
}

// UpdateBill replaces the fields of an existing bill
func (s *Service) UpdateBill(ctx context.Context, id string, b *models.Bill) (*models.Bill, error) {
	if err := services.ValidateInput(b); err != nil {
		return nil, err
	}
	if _, err := s.billing.Get(ctx, id); err != nil {
		return nil, err
	}

	b.ID = ""
	b.Date = b.Date.UTC()
	if err := s.billing.Put(ctx, id, b); err != nil {
		return nil, err
	}
	b.ID = id
	return b, nil
}

// DeleteBill removes a bill
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	return s.billing.Delete(ctx, id)
}
