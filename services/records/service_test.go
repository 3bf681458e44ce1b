package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/repositories/memory"
	"github.com/amoreldmija/hospital/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *memory.DocumentStore) {
	t.Helper()
	docs := memory.NewDocumentStore()
	return NewService(docs, zap.NewNop()), docs
}

type failingStore struct {
	repositories.DocumentStore
}

func (failingStore) QueryDocuments(ctx context.Context, collection string, q repositories.Query) ([]*repositories.Document, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) GetDocument(ctx context.Context, collection, id string) (*repositories.Document, error) {
	return nil, errors.New("connection refused")
}

func TestPatients_CRUD(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.CreatePatient(ctx, &models.Patient{Name: "Jane Doe", Age: 40, Disease: "flu"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = svc.CreatePatient(ctx, &models.Patient{Name: "Adam Smith", Age: 30})
	require.NoError(t, err)

	list, err := svc.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Adam Smith", list[0].Name)
	assert.Equal(t, created.ID, list[1].ID)

	updated, err := svc.UpdatePatient(ctx, created.ID, &models.Patient{Name: "Jane Doe", Age: 41})
	require.NoError(t, err)
	assert.Equal(t, 41, updated.Age)

	got, err := svc.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 41, got.Age)

	require.NoError(t, svc.DeletePatient(ctx, created.ID))
	_, err = svc.GetPatient(ctx, created.ID)
	assert.ErrorIs(t, err, services.ErrPatientNotFound)
	assert.ErrorIs(t, svc.DeletePatient(ctx, created.ID), services.ErrPatientNotFound)
}

func TestPatients_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreatePatient(ctx, &models.Patient{Age: 200})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))

	fields, ok := services.GetErrorDetails(err)["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "age")

	_, err = svc.CreatePatient(ctx, &models.Patient{Name: "Jane", DoctorID: "ghost"})
	assert.ErrorIs(t, err, services.ErrDoctorNotFound)

	_, err = svc.UpdatePatient(ctx, "missing", &models.Patient{Name: "Jane"})
	assert.ErrorIs(t, err, services.ErrPatientNotFound)
}

func TestDoctors_CRUD(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDoctor(ctx, &models.Doctor{Name: "Dr. House", Specialization: "Diagnostics", Contact: "555-0100"})
	require.NoError(t, err)

	_, err = svc.CreateDoctor(ctx, &models.Doctor{Name: "Dr. Who"})
	assert.True(t, services.IsValidationError(err))

	d.Specialization = "Nephrology"
	_, err = svc.UpdateDoctor(ctx, d.ID, d)
	require.NoError(t, err)

	got, err := svc.GetDoctor(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nephrology", got.Specialization)

	patient, err := svc.CreatePatient(ctx, &models.Patient{Name: "Jane", DoctorID: d.ID})
	require.NoError(t, err)
	assert.Equal(t, d.ID, patient.DoctorID)

	require.NoError(t, svc.DeleteDoctor(ctx, d.ID))
	list, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBilling_NewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateBill(ctx, &models.Bill{InvoiceNo: "INV-1", PatientName: "Jane", Amount: 100, Date: day})
	require.NoError(t, err)
	second, err := svc.CreateBill(ctx, &models.Bill{InvoiceNo: "INV-2", PatientName: "Jane", Amount: 50, Date: day.Add(24 * time.Hour)})
	require.NoError(t, err)

	bills, err := svc.ListBills(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, second.ID, bills[0].ID)

	_, err = svc.CreateBill(ctx, &models.Bill{InvoiceNo: "INV-3", PatientName: "Jane", Amount: -1, Date: day})
	assert.True(t, services.IsValidationError(err))

	_, err = svc.UpdateBill(ctx, second.ID, &models.Bill{InvoiceNo: "INV-2", PatientName: "Jane", Amount: 75, Date: day})
	require.NoError(t, err)
	got, err := svc.GetBill(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.Amount)

	require.NoError(t, svc.DeleteBill(ctx, second.ID))
	_, err = svc.GetBill(ctx, second.ID)
	assert.True(t, services.IsNotFoundError(err))
}

func TestChart(t *testing.T) {
	ctx := context.Background()
	svc, docs := newTestService(t)
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	patient, err := svc.CreatePatient(ctx, &models.Patient{Name: "Jane Doe", Age: 40})
	require.NoError(t, err)
	_, err = svc.CreateBill(ctx, &models.Bill{InvoiceNo: "INV-1", PatientName: "Jane Doe", Amount: 10, Date: day})
	require.NoError(t, err)
	_, err = svc.CreateBill(ctx, &models.Bill{InvoiceNo: "INV-2", PatientName: "Someone Else", Amount: 10, Date: day})
	require.NoError(t, err)

	require.NoError(t, docs.SetDocument(ctx, models.CollectionAppointments, "a1", map[string]interface{}{
		"appointmentId": 1, "patient": "Jane Doe", "doctor": "d1", "date": day.Format(time.RFC3339Nano), "approved": false,
	}))
	require.NoError(t, docs.SetDocument(ctx, models.CollectionPrescriptions, "p1", map[string]interface{}{
		"appointmentId": "a1", "patientName": "Jane Doe", "medication": "Rest",
	}))

	chart, err := svc.Chart(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, chart.Patient.ID)
	require.Len(t, chart.Appointments, 1)
	assert.Equal(t, "a1", chart.Appointments[0].ID)
	require.Len(t, chart.Billing, 1)
	assert.Equal(t, "INV-1", chart.Billing[0].InvoiceNo)
	require.Len(t, chart.Prescriptions, 1)
	assert.Equal(t, "Rest", chart.Prescriptions[0].Medication)

	_, err = svc.Chart(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrPatientNotFound)
}

func TestStoreFailuresAreBackendErrors(t *testing.T) {
	svc := NewService(failingStore{}, zap.NewNop())

	_, err := svc.ListPatients(context.Background())
	assert.True(t, services.IsBackendUnavailableError(err))

	_, err = svc.GetDoctor(context.Background(), "d1")
	assert.True(t, services.IsBackendUnavailableError(err))
}
