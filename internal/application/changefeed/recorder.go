package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/tenantwire/internal/domain"
)

// Recorder writes one audit row per change.
type Recorder struct {
	now   func() time.Time
	newID func() string
}

func NewRecorder() *Recorder {
	return &Recorder{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Record stamps rec with an id and a UTC timestamp and appends it to store.
// Every failure, including a panicking store, comes back as a
// PersistenceFailure.
func (r *Recorder) Record(ctx context.Context, store domain.AuditRepository, rec *domain.AuditRecord) (err error) {
	if rec == nil {
		return domain.NewAuditError(domain.PersistenceFailure, "", domain.ErrInvalidInput)
	}
	if rec.PartitionKey == "" {
		return domain.NewAuditError(domain.PersistenceFailure, "", domain.ErrEmptyPartition)
	}
	if store == nil {
		return domain.NewAuditError(domain.PersistenceFailure, rec.PartitionKey, domain.ErrNoStore)
	}

	rec.ID = r.newID()
	rec.Timestamp = r.now().UTC()

	defer func() {
		if p := recover(); p != nil {
			err = domain.NewAuditError(domain.PersistenceFailure, rec.PartitionKey, fmt.Errorf("audit store panic: %v", p))
		}
	}()

	if err := store.Append(ctx, rec); err != nil {
		return domain.NewAuditError(domain.PersistenceFailure, rec.PartitionKey, err)
	}

	return nil
}
