// Package sessionlog implements the Session Logger (§4.11): per-call
// transcript/call-log/summary files on disk, rooted at
// <root>/<YYYY-MM-DD>/<client_id>/session_<ts>_<call_id[:8]>/, plus a
// Postgres mirror of the session summary and a retention janitor.
package sessionlog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRecord is the Postgres mirror of one call's summary.json,
// modeled on the teacher's callcontext.CallContext gorm row — same
// column-tagged struct + TableName() + BeforeCreate() shape, generalized
// from a claim-queue row to an append-only summary record (no Status
// state machine needed: a gateway session is written exactly once, at
// teardown).
type SessionRecord struct {
	ID               string    `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	CallID           string    `json:"callId" gorm:"column:call_id;type:varchar(64);not null;uniqueIndex"`
	ClientID         string    `json:"clientId" gorm:"column:client_id;type:varchar(32);not null"`
	ChannelUUID      string    `json:"channelUuid" gorm:"column:channel_uuid;type:varchar(64);not null;default:''"`
	CallerNumber     string    `json:"callerNumber" gorm:"column:caller_number;type:varchar(32);not null;default:''"`
	StartTime        time.Time `json:"startTime" gorm:"column:start_time;type:timestamp;not null"`
	EndTime          time.Time `json:"endTime" gorm:"column:end_time;type:timestamp;not null"`
	TotalPhrases     int       `json:"totalPhrases" gorm:"column:total_phrases;type:int;not null;default:0"`
	Intents          string    `json:"intents" gorm:"column:intents;type:text;not null;default:''"`
	HandoffOccurred  bool      `json:"handoffOccurred" gorm:"column:handoff_occurred;type:boolean;not null;default:false"`
	FinalPhase       string    `json:"finalPhase" gorm:"column:final_phase;type:varchar(32);not null;default:''"`
	SessionDirectory string    `json:"sessionDirectory" gorm:"column:session_directory;type:text;not null;default:''"`
	CreatedAt        time.Time `json:"createdAt" gorm:"column:created_at;type:timestamp;not null;default:NOW();<-:create"`
}

// TableName pins the gorm table name, matching the teacher's explicit
// TableName() override rather than relying on pluralization defaults.
func (SessionRecord) TableName() string { return "gateway_session_records" }

// BeforeCreate assigns a UUID primary key, mirroring callcontext's
// BeforeCreate hook (there it's a Snowflake-style generator; a voice
// gateway has no such generator wired, so a UUID is used instead).
func (r *SessionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
