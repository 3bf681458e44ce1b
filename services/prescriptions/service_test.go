package prescriptions

import (
	"context"
	"testing"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories/memory"
	"github.com/amoreldmija/hospital/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) *Service {
	t.Helper()
	docs := memory.NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SetDocument(ctx, models.CollectionAppointments, "appt-1", map[string]interface{}{
		"appointmentId": 1, "patient": "Jane Doe", "doctor": "d1", "date": "2024-05-01T10:00:00Z",
	}))
	require.NoError(t, docs.SetDocument(ctx, models.CollectionAppointments, "appt-2", map[string]interface{}{
		"appointmentId": 2, "patient": "Adam Smith", "doctor": "d1", "date": "2024-05-02T10:00:00Z",
	}))
	return NewService(docs, zap.NewNop())
}

func order(appointmentID string) *models.Prescription {
	return &models.Prescription{
		AppointmentID: appointmentID,
		PatientName:   "typed by hand",
		Medication:    "Ibuprofen",
		Dosage:        "200mg",
		Frequency:     "twice daily",
		Duration:      "5 days",
	}
}

func TestCreate_CopiesPatientName(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	p, err := svc.Create(ctx, order("appt-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Jane Doe", p.PatientName)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.PatientName)
}

func TestCreate_UnknownAppointment(t *testing.T) {
	_, err := setup(t).Create(context.Background(), order("nope"))
	assert.ErrorIs(t, err, services.ErrAppointmentNotFound)
}

func TestCreate_Validation(t *testing.T) {
	p := order("appt-1")
	p.Medication = ""

	_, err := setup(t).Create(context.Background(), p)
	assert.True(t, services.IsValidationError(err))
}

func TestUpdate_RelinksPatient(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	p, err := svc.Create(ctx, order("appt-1"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, order("appt-2"))
	require.NoError(t, err)
	assert.Equal(t, "Adam Smith", updated.PatientName)

	_, err = svc.Update(ctx, "missing", order("appt-1"))
	assert.ErrorIs(t, err, services.ErrPrescriptionNotFound)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	first, err := svc.Create(ctx, order("appt-1"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, order("appt-2"))
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Adam Smith", list[0].PatientName)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, first.ID), services.ErrPrescriptionNotFound)
}
