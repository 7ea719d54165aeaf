package session

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, s *models.CallSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetOwned loads a session only when it belongs to the given user.
func (r *Repo) GetOwned(ctx context.Context, sessionID, userID string) (*models.CallSession, error) {
	var s models.CallSession
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*models.CallSession, error) {
	var s models.CallSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Save(ctx context.Context, s *models.CallSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Transcript returns a session's messages in append order.
func (r *Repo) Transcript(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

// ListByOwner pages through a user's sessions, most recent first.
func (r *Repo) ListByOwner(ctx context.Context, userID, status string, offset, limit int) ([]models.CallSession, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.CallSession{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.CallSession
	if err := q.Order("started_at DESC").
		Offset(offset).Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// ListByStatus is the evaluation feed: any owner, newest first, preloaded
// with the owning user.
func (r *Repo) ListByStatus(ctx context.Context, status, userID string, limit int) ([]models.CallSession, error) {
	q := r.db.WithContext(ctx).Preload("User").Where("status = ?", status)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var sessions []models.CallSession
	if err := q.Order("started_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteEndedBefore removes ended sessions older than the cutoff together
// with their messages.
func (r *Repo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.CallSession{}).
		Where("status = ? AND started_at < ?", models.StatusEnded, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Delete(&models.ChatMessage{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.CallSession{})
	return res.RowsAffected, res.Error
}
