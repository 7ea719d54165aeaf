package audit

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/logger"
	"github.com/callsim/callsim/internal/models"
)

// Event types written by the rest of the system.
const (
	EventUserRegistration  = "user_registration"
	EventLoginSuccess      = "login_success"
	EventLoginFailed       = "login_failed"
	EventSessionStart      = "session_start"
	EventSessionEnd        = "session_end"
	EventSessionEvaluate   = "session_evaluate"
	EventRateLimitExceeded = "rate_limit_exceeded"
)

type Entry struct {
	UserID       *string
	EventType    string
	Resource     string
	Action       string
	IPAddress    string
	UserAgent    string
	StatusCode   int
	ErrorMessage string
	Metadata     map[string]any
}

// Logger is the append-only audit sink. Writes must never break the request
// path: every failure is logged locally and swallowed.
type Logger struct {
	db *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(ctx context.Context, e Entry) {
	if l == nil || l.db == nil {
		return
	}
	row := models.AuditLog{
		UserID:       e.UserID,
		EventType:    e.EventType,
		Resource:     e.Resource,
		Action:       e.Action,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		StatusCode:   e.StatusCode,
		ErrorMessage: e.ErrorMessage,
	}
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			row.EventMetadata = datatypes.JSON(b)
		}
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.L.WithError(err).WithField("event_type", e.EventType).
			Error("audit write failed")
	}
}
