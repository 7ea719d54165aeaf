package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleTrainer = "trainer"
	RoleTrainee = "trainee"
)

func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleTrainer || r == RoleTrainee
}

// Session status values. StatusAbandoned is reserved for an external
// timeout-driven transition; nothing in this codebase sets it.
const (
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusAbandoned = "abandoned"
)

type User struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string `gorm:"type:varchar(255);not null" json:"full_name"`
	Role         string `gorm:"type:varchar(16);not null;default:trainee" json:"role"`

	IsActive      bool `gorm:"not null;default:true" json:"is_active"`
	EmailVerified bool `gorm:"not null;default:false" json:"email_verified"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`

	Sessions []CallSession `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	APIKeys  []APIKey      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type APIKey struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID  string `gorm:"type:varchar(36);not null;index" json:"user_id"`
	KeyHash string `gorm:"type:varchar(255);not null" json:"-"`
	Name    string `gorm:"type:varchar(100);not null" json:"name"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (APIKey) TableName() string { return "user_api_keys" }

func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return nil
}

type CallSession struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(36);not null;index" json:"user_id"`

	SessionToken string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	CallerInfo   datatypes.JSON `json:"caller_info"`

	Status string `gorm:"type:varchar(20);not null;default:active;index" json:"status"`

	DurationSeconds int `gorm:"not null;default:0" json:"duration_seconds"`
	MessageCount    int `gorm:"not null;default:0" json:"message_count"`

	// Performance scores, 0-100, absent until evaluated.
	OverallScore        *float64 `json:"overall_score"`
	EmpathyScore        *float64 `json:"empathy_score"`
	ClarityScore        *float64 `json:"clarity_score"`
	ProblemSolvingScore *float64 `json:"problem_solving_score"`

	StartedAt time.Time  `gorm:"not null;index" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	User     *User         `gorm:"foreignKey:UserID" json:"-"`
	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CallSession) TableName() string { return "call_sessions" }

func (s *CallSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	return nil
}

type ChatMessage struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID string `gorm:"type:varchar(36);not null;index" json:"session_id"`

	Role    string `gorm:"type:varchar(20);not null" json:"role"`
	Content string `gorm:"type:text;not null" json:"content"`
	Speaker string `gorm:"type:varchar(50)" json:"speaker"`

	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	TokensUsed *int      `json:"tokens_used"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

type AuditLog struct {
	ID     string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID *string `gorm:"type:varchar(36);index" json:"user_id"`

	EventType string `gorm:"type:varchar(50);not null;index" json:"event_type"`
	Resource  string `gorm:"type:varchar(100)" json:"resource"`
	Action    string `gorm:"type:varchar(50)" json:"action"`

	IPAddress     string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent     string         `gorm:"type:varchar(255)" json:"user_agent"`
	StatusCode    int            `json:"status_code"`
	ErrorMessage  string         `gorm:"type:text" json:"error_message,omitempty"`
	EventMetadata datatypes.JSON `json:"event_metadata,omitempty"`

	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

func (AuditLog) TableName() string { return "audit_logs" }

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}
