// Package usage persists an audit trail of attempted model invocations.
// Recording is best-effort: a failed write is logged, never surfaced to the
// caller, and never blocks the request path.
package usage

import (
	"context"
	"time"

	"github.com/modelarena/modelarena/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const recordTimeout = 5 * time.Second

// Entry describes one attempted invocation.
type Entry struct {
	UserID  uint64
	ModelID string
	Source  string
	Failed  bool
}

// GormRecorder persists invocation entries via GORM.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder constructs a GormRecorder.
func NewGormRecorder(db *gorm.DB) *GormRecorder { return &GormRecorder{db: db} }

// Record writes one entry. The write uses a detached context so a canceled
// request cannot drop the audit row.
func (r *GormRecorder) Record(_ context.Context, entry Entry) {
	if r == nil || r.db == nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	row := models.Invocation{
		UserID:    entry.UserID,
		ModelID:   entry.ModelID,
		Source:    entry.Source,
		Failed:    entry.Failed,
		CreatedAt: time.Now().UTC(),
	}
	if errCreate := r.db.WithContext(dbCtx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Warn("usage: failed to persist invocation")
	}
}
