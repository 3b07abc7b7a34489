package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dialogforge-backend/internal/domain/dialog"
)

type DialogJobStatus string

const (
	DialogJobPending    DialogJobStatus = "pending"
	DialogJobInProgress DialogJobStatus = "in_progress"
	DialogJobCompleted  DialogJobStatus = "completed"
	DialogJobFailed     DialogJobStatus = "failed"
)

var DialogJobStatuses = []DialogJobStatus{
	DialogJobPending,
	DialogJobInProgress,
	DialogJobCompleted,
	DialogJobFailed,
}

func (s DialogJobStatus) Terminal() bool {
	return s == DialogJobCompleted || s == DialogJobFailed
}

// DialogJob drives one dialog to completion one turn at a time. At most one
// non-completed job may exist per dialog.
//
// DeferCount counts transient deferrals since the last successful turn, and NotBefore
// keeps a deferred job out of the due set until its cool-down has passed.
type DialogJob struct {
	ID                uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	DialogID          uuid.UUID            `gorm:"type:uuid;not null;index;index:idx_dialog_job_active,unique,where:status <> 'completed'" json:"dialog_id"`
	Status            DialogJobStatus      `gorm:"column:status;not null;index" json:"status"`
	CurrentTurn       int                  `gorm:"column:current_turn;not null;default:0" json:"current_turn"`
	MaxTurns          int                  `gorm:"column:max_turns;not null;default:0" json:"max_turns"`
	NextCharacterType dialog.CharacterType `gorm:"column:next_character_type;not null" json:"next_character_type"`
	LastProcessedAt   *time.Time           `gorm:"column:last_processed_at;index" json:"last_processed_at,omitempty"`
	ErrorMessage      string               `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	RetryCount        int                  `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	RestartCount      int                  `gorm:"column:restart_count;not null;default:0" json:"restart_count"`
	DeferCount        int                  `gorm:"column:defer_count;not null;default:0" json:"defer_count"`
	NotBefore         *time.Time           `gorm:"column:not_before;index" json:"not_before,omitempty"`
	CompletedAt       *time.Time           `gorm:"column:completed_at;index" json:"completed_at,omitempty"`
	CreatedAt         time.Time            `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"not null;index" json:"updated_at"`
}

func (DialogJob) TableName() string { return "dialog_job" }

func (j *DialogJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = DialogJobPending
	}
	return nil
}
