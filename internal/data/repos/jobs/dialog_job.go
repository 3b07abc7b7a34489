package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type DialogJobRepo interface {
	Create(dbc dbctx.Context, job *types.DialogJob) (*types.DialogJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DialogJob, error)
	GetActiveByDialogID(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error)
	GetLatestByDialogID(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error)
	// ListDue returns pending jobs with turns left that have been quiet since quietBefore and
	// are not deferred past now, oldest first.
	ListDue(dbc dbctx.Context, quietBefore, now time.Time, limit int) ([]*types.DialogJob, error)
	ListByStatuses(dbc dbctx.Context, statuses []types.DialogJobStatus) ([]*types.DialogJob, error)
	CountByStatus(dbc dbctx.Context) (map[types.DialogJobStatus]int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsIfStatus applies updates only while the row is still in status. It reports whether it did.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, status types.DialogJobStatus, updates map[string]interface{}) (bool, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []types.DialogJobStatus, updates map[string]interface{}) (bool, error)
	// ResetStale moves in_progress jobs untouched since before cutoff back to pending.
	ResetStale(dbc dbctx.Context, cutoff time.Time, reason string, now time.Time) (int64, error)
	DeleteCompletedBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type dialogJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDialogJobRepo(db *gorm.DB, baseLog *logger.Logger) DialogJobRepo {
	return &dialogJobRepo{db: db, log: baseLog.With("repo", "DialogJobRepo")}
}

func (r *dialogJobRepo) Create(dbc dbctx.Context, job *types.DialogJob) (*types.DialogJob, error) {
	if job == nil {
		return nil, gorm.ErrInvalidData
	}
	if err := dbc.DB(r.db).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *dialogJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DialogJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).Where("id = ?", id))
}

func (r *dialogJobRepo) GetActiveByDialogID(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error) {
	if dialogID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).
		Where("dialog_id = ? AND status <> ?", dialogID, types.DialogJobCompleted).
		Order("created_at DESC"))
}

func (r *dialogJobRepo) GetLatestByDialogID(dbc dbctx.Context, dialogID uuid.UUID) (*types.DialogJob, error) {
	if dialogID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).
		Where("dialog_id = ?", dialogID).
		Order("created_at DESC"))
}

func (r *dialogJobRepo) first(q *gorm.DB) (*types.DialogJob, error) {
	var job types.DialogJob
	if err := q.Limit(1).Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *dialogJobRepo) ListDue(dbc dbctx.Context, quietBefore, now time.Time, limit int) ([]*types.DialogJob, error) {
	var out []*types.DialogJob
	q := dbc.DB(r.db).
		Where("status = ?", types.DialogJobPending).
		Where("current_turn < max_turns").
		Where("(last_processed_at IS NULL OR last_processed_at <= ?)", quietBefore).
		Where("(not_before IS NULL OR not_before <= ?)", now).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dialogJobRepo) ListByStatuses(dbc dbctx.Context, statuses []types.DialogJobStatus) ([]*types.DialogJob, error) {
	var out []*types.DialogJob
	if len(statuses) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("status IN ?", statuses).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dialogJobRepo) CountByStatus(dbc dbctx.Context) (map[types.DialogJobStatus]int64, error) {
	var rows []struct {
		Status types.DialogJobStatus
		Count  int64
	}
	if err := dbc.DB(r.db).
		Model(&types.DialogJob{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[types.DialogJobStatus]int64, len(types.DialogJobStatuses))
	for _, s := range types.DialogJobStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *dialogJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.DialogJob{}).
		Where("id = ?", id).
		Updates(withUpdatedAt(updates)).Error
}

func (r *dialogJobRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, status types.DialogJobStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.DialogJob{}).
		Where("id = ? AND status = ?", id, status).
		Updates(withUpdatedAt(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *dialogJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []types.DialogJobStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	q := dbc.DB(r.db).
		Model(&types.DialogJob{}).
		Where("id = ?", id)
	if len(disallowed) == 1 {
		q = q.Where("status <> ?", disallowed[0])
	} else if len(disallowed) > 1 {
		q = q.Where("status NOT IN ?", disallowed)
	}
	res := q.Updates(withUpdatedAt(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *dialogJobRepo) ResetStale(dbc dbctx.Context, cutoff time.Time, reason string, now time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Model(&types.DialogJob{}).
		Where("status = ?", types.DialogJobInProgress).
		Where("((last_processed_at IS NOT NULL AND last_processed_at < ?) OR (last_processed_at IS NULL AND updated_at < ?))", cutoff, cutoff).
		Updates(map[string]interface{}{
			"status":        types.DialogJobPending,
			"error_message": reason,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *dialogJobRepo) DeleteCompletedBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Where("status = ?", types.DialogJobCompleted).
		Where("((completed_at IS NOT NULL AND completed_at < ?) OR (completed_at IS NULL AND updated_at < ?))", cutoff, cutoff).
		Delete(&types.DialogJob{})
	return res.RowsAffected, res.Error
}

func withUpdatedAt(updates map[string]interface{}) map[string]interface{} {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return updates
}
