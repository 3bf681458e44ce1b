package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amoreldmija/hospital/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertedLogs = append(m.insertedLogs, log)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetByUID(ctx context.Context, uid string, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, uid, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditLog(nil), m.insertedLogs...)
}

func denial() *models.AuditLog {
	return models.NewAuditLog(&models.Principal{UID: "u1", Role: models.RolePatient},
		models.Action(models.ResourceUsers, models.OpView), models.AuditOutcomeRedirectToHome).
		WithReason("role patient may not view users")
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	// Cannot start again
	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)

	// Events after stop are rejected rather than panicking on the closed channel.
	assert.Error(t, service.LogEvent(&AuditEvent{Log: denial()}))
	assert.Error(t, service.Stop(time.Second))
}

func TestAuditService_LogEvent(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 2})
	require.NoError(t, service.Start())

	require.NoError(t, service.LogEvent(&AuditEvent{Log: denial()}))
	require.NoError(t, service.Stop(5*time.Second))

	inserted := mockRepo.GetInsertedLogs()
	require.Len(t, inserted, 1)
	assert.Equal(t, "u1", inserted[0].UID)
	assert.Equal(t, models.AuditOutcomeRedirectToHome, inserted[0].Outcome)
}

func TestAuditService_NotStarted(t *testing.T) {
	service := NewAuditService(new(MockAuditRepository), zap.NewNop(), DefaultConfig())
	assert.Error(t, service.LogEvent(&AuditEvent{Log: denial()}))
	assert.Error(t, service.LogEventBlocking(context.Background(), &AuditEvent{Log: denial()}))
}

func TestAuditService_StopDrainsPendingEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 3})
	require.NoError(t, service.Start())

	for i := 0; i < 50; i++ {
		require.NoError(t, service.LogEvent(&AuditEvent{Log: denial()}))
	}
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 50)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 1000, WorkerCount: 5})
	require.NoError(t, service.Start())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				service.Record(context.Background(), denial())
			}
		}()
	}
	wg.Wait()
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 100)
}

func TestAuditService_BufferFull(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		<-release
	})

	service := NewAuditService(mockRepo, zap.NewNop(), Config{BufferSize: 2, WorkerCount: 1})
	require.NoError(t, service.Start())

	failures := 0
	for i := 0; i < 10; i++ {
		if err := service.LogEvent(&AuditEvent{Log: denial()}); err != nil {
			failures++
		}
	}
	close(release)
	require.NoError(t, service.Stop(5*time.Second))

	// At most one event in the worker plus two buffered.
	assert.GreaterOrEqual(t, failures, 7)
	assert.Equal(t, uint64(failures), service.GetStats().Dropped)
}

func TestAuditService_InsertFailureIsLogged(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))

	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig())
	require.NoError(t, service.Start())

	service.Record(context.Background(), denial())
	require.NoError(t, service.Stop(5*time.Second))

	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestAuditService_RecordMutation(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig())
	require.NoError(t, service.Start())

	admin := &models.Principal{UID: "admin-1", Role: models.RoleAdmin}
	service.RecordMutation(context.Background(), admin, models.Action(models.ResourceUsers, models.OpDelete), "u7", "req-9")
	require.NoError(t, service.Stop(5*time.Second))

	inserted := mockRepo.GetInsertedLogs()
	require.Len(t, inserted, 1)
	assert.Equal(t, models.AuditOutcomeAllowed, inserted[0].Outcome)
	assert.Equal(t, "u7", inserted[0].ResourceID)
	assert.Equal(t, "req-9", inserted[0].RequestID)
	assert.Equal(t, models.RoleAdmin, inserted[0].Role)
}

func TestAuditService_Recent(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockAuditRepository)
	logs := []*models.AuditLog{denial()}
	mockRepo.On("List", ctx, 50, 0).Return(logs, nil)
	mockRepo.On("GetByUID", ctx, "u1", 10, 5).Return(logs, nil)

	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig())

	got, err := service.Recent(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = service.Recent(ctx, "u1", 10, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	mockRepo.AssertExpectations(t)
}
