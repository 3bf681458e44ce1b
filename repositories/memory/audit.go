package memory

import (
	"context"
	"sync"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
)

// AuditLog keeps audit entries in memory, newest last. A capacity above zero
// bounds it to the most recent entries.
type AuditLog struct {
	mu       sync.RWMutex
	entries  []models.AuditLog
	capacity int
}

var _ repositories.AuditRepository = (*AuditLog)(nil)

// NewAuditLog creates an audit log holding at most capacity entries
func NewAuditLog(capacity int) *AuditLog {
	return &AuditLog{capacity: capacity}
}

// Insert appends log
func (a *AuditLog) Insert(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, *log)
	if a.capacity > 0 && len(a.entries) > a.capacity {
		a.entries = append(a.entries[:0:0], a.entries[len(a.entries)-a.capacity:]...)
	}
	return nil
}

// List returns entries newest first
func (a *AuditLog) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return a.page(func(*models.AuditLog) bool { return true }, limit, offset), nil
}

// GetByUID returns the entries of one identity, newest first
func (a *AuditLog) GetByUID(ctx context.Context, uid string, limit, offset int) ([]*models.AuditLog, error) {
	return a.page(func(l *models.AuditLog) bool { return l.UID == uid }, limit, offset), nil
}

func (a *AuditLog) page(keep func(*models.AuditLog) bool, limit, offset int) []*models.AuditLog {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*models.AuditLog, 0)
	skipped := 0
	for i := len(a.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		entry := a.entries[i]
		if !keep(&entry) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, &entry)
	}
	return out
}
