package models

import (
	"time"
)

// Collection names in the document store.
const (
	CollectionUsers         = "users"
	CollectionPatients      = "patients"
	CollectionDoctors       = "doctors"
	CollectionAppointments  = "appointments"
	CollectionPrescriptions = "prescriptions"
	CollectionBilling       = "billing"
)

// UserProfile is the profile document stored under users/{uid}.
type UserProfile struct {
	UID           string `json:"uid"`
	Email         string `json:"email" validate:"required,email"`
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	ContactNumber string `json:"contactNumber" validate:"omitempty,max=32"`
	Role          Role   `json:"role" validate:"required,oneof=admin doctor patient"`
}

// Principal converts the profile into the session principal.
func (u *UserProfile) Principal() *Principal {
	return &Principal{
		UID:           u.UID,
		Email:         u.Email,
		Role:          u.Role,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ContactNumber: u.ContactNumber,
	}
}

// Patient is a patient record.
type Patient struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name" validate:"required,max=200"`
	Age           int    `json:"age" validate:"gte=0,lte=150"`
	Disease       string `json:"disease,omitempty" validate:"max=200"`
	DoctorID      string `json:"doctorId,omitempty"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	ContactNumber string `json:"contactNumber,omitempty" validate:"max=32"`
}

// Doctor is a doctor record.
type Doctor struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name" validate:"required,max=200"`
	Specialization string `json:"specialization" validate:"required,max=200"`
	Contact        string `json:"contact" validate:"required,max=64"`
}

// Appointment is a booking between a patient and a doctor.
type Appointment struct {
	ID            string    `json:"id,omitempty"`
	AppointmentID int       `json:"appointmentId"`
	Patient       string    `json:"patient" validate:"required,max=200"`
	Doctor        string    `json:"doctor" validate:"required"`
	DoctorName    string    `json:"doctorName,omitempty"`
	Date          time.Time `json:"date" validate:"required"`
	Reason        string    `json:"reason" validate:"max=1000"`
	Approved      bool      `json:"approved"`
}

// Status renders the approval state the way the schedule shows it.
func (a *Appointment) Status() string {
	if a.Approved {
		return "Approved"
	}
	return "Pending"
}

// Prescription is a medication order tied to an appointment.
type Prescription struct {
	ID            string `json:"id,omitempty"`
	AppointmentID string `json:"appointmentId" validate:"required"`
	PatientName   string `json:"patientName"`
	Medication    string `json:"medication" validate:"required,max=200"`
	Dosage        string `json:"dosage" validate:"required,max=100"`
	Frequency     string `json:"frequency" validate:"required,max=100"`
	Duration      string `json:"duration" validate:"required,max=100"`
}

// Bill is an invoice issued to a patient.
type Bill struct {
	ID          string    `json:"id,omitempty"`
	InvoiceNo   string    `json:"invoiceNo" validate:"required,max=64"`
	PatientName string    `json:"patientName" validate:"required,max=200"`
	Amount      float64   `json:"amount" validate:"gte=0"`
	Date        time.Time `json:"date" validate:"required"`
	Insurance   string    `json:"insurance,omitempty" validate:"max=200"`
}

// PatientChart aggregates everything recorded for one patient.
type PatientChart struct {
	Patient       *Patient        `json:"patient"`
	Appointments  []*Appointment  `json:"appointments"`
	Billing       []*Bill         `json:"billing"`
	Prescriptions []*Prescription `json:"prescriptions"`
}
