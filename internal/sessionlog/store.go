package sessionlog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// Store persists SessionRecords to Postgres, generalized from the
// teacher's callcontext.Store interface (Save/Get) down to the two
// operations a write-once summary record actually needs.
type Store interface {
	Save(ctx context.Context, r *SessionRecord) error
	Get(ctx context.Context, callID string) (*SessionRecord, error)
}

type gormStore struct {
	db  *gorm.DB
	log logging.Logger
}

// NewStore wraps an already-migrated *gorm.DB.
func NewStore(db *gorm.DB, log logging.Logger) Store {
	if log == nil {
		log = logging.NewNop()
	}
	return &gormStore{db: db, log: log}
}

func (s *gormStore) Save(ctx context.Context, r *SessionRecord) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("sessionlog: save record for call %s: %w", r.CallID, err)
	}
	s.log.Debugw("session_record_saved", "call_id", r.CallID, "client_id", r.ClientID)
	return nil
}

func (s *gormStore) Get(ctx context.Context, callID string) (*SessionRecord, error) {
	var r SessionRecord
	if err := s.db.WithContext(ctx).Where("call_id = ?", callID).First(&r).Error; err != nil {
		return nil, fmt.Errorf("sessionlog: record not found for call %s: %w", callID, err)
	}
	return &r, nil
}
