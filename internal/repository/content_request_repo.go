package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/model"
)

var activeStatuses = []string{model.StatusPending, model.StatusProcessing}

type ContentRequestRepository struct {
	db *gorm.DB
}

func NewContentRequestRepository(db *gorm.DB) *ContentRequestRepository {
	return &ContentRequestRepository{db: db}
}

func (r *ContentRequestRepository) Create(req *model.ContentRequest) error {
	return r.db.Create(req).Error
}

func (r *ContentRequestRepository) GetByID(id int64) (*model.ContentRequest, error) {
	var req model.ContentRequest
	err := r.db.Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ContentRequestRepository) GetByIDWithUser(id int64) (*model.ContentRequest, error) {
	var req model.ContentRequest
	err := r.db.Preload("User").Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByKey finds a request by the correlation id sent to n8n.
func (r *ContentRequestRepository) GetByKey(key string) (*model.ContentRequest, error) {
	var req model.ContentRequest
	err := r.db.Where("request_key = ?", key).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByUserID returns a page of the user's requests without artifact columns.
func (r *ContentRequestRepository) ListByUserID(userID int64, page, pageSize int, kind string) ([]*model.ContentRequest, int64, error) {
	var reqs []*model.ContentRequest
	var total int64

	query := r.db.Model(&model.ContentRequest{}).Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Omit("csv_base64", "script_content").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(pageSize).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

// MarkProcessing moves a pending request to processing.
func (r *ContentRequestRepository) MarkProcessing(id int64, at time.Time) error {
	return r.db.Model(&model.ContentRequest{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":     model.StatusProcessing,
			"started_at": at,
		}).Error
}

// Complete stores the artifact. It reports false when the request was
// already terminal.
func (r *ContentRequestRepository) Complete(id int64, fields map[string]interface{}) (bool, error) {
	fields["status"] = model.StatusCompleted
	if _, ok := fields["completed_at"]; !ok {
		fields["completed_at"] = time.Now()
	}
	result := r.db.Model(&model.ContentRequest{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(fields)
	return result.RowsAffected > 0, result.Error
}

// Fail marks the request failed. It reports false when the request was
// already terminal.
func (r *ContentRequestRepository) Fail(id int64, message string) (bool, error) {
	result := r.db.Model(&model.ContentRequest{}).
		Where("id = ? AND status IN ?", id, activeStatuses).
		Updates(map[string]interface{}{
			"status":        model.StatusFailed,
			"error_message": message,
			"completed_at":  time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *ContentRequestRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.ContentRequest{}).Where("id = ?", id).Updates(fields).Error
}

// ListStale returns active requests created before the cutoff.
func (r *ContentRequestRepository) ListStale(before time.Time, limit int) ([]*model.ContentRequest, error) {
	var reqs []*model.ContentRequest
	err := r.db.Omit("csv_base64", "script_content").
		Where("status IN ? AND created_at < ?", activeStatuses, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&reqs).Error
	return reqs, err
}

// DeleteTerminalBefore purges finished requests older than the cutoff.
func (r *ContentRequestRepository) DeleteTerminalBefore(before time.Time) (int64, error) {
	result := r.db.Where("status IN ? AND created_at < ?",
		[]string{model.StatusCompleted, model.StatusFailed}, before).
		Delete(&model.ContentRequest{})
	return result.RowsAffected, result.Error
}

// CountTerminalBefore reports how many rows DeleteTerminalBefore would remove.
func (r *ContentRequestRepository) CountTerminalBefore(before time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.ContentRequest{}).
		Where("status IN ? AND created_at < ?",
			[]string{model.StatusCompleted, model.StatusFailed}, before).
		Count(&count).Error
	return count, err
}
