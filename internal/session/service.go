package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/models"
	"github.com/callsim/callsim/internal/redisstore"
)

var (
	// ErrNotFound covers unknown ids and sessions owned by someone else.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidScore rejects evaluation scores outside 0-100.
	ErrInvalidScore = errors.New("scores must be between 0 and 100")
)

// Greeting opens every call as the transcript's first message.
const Greeting = "Hello! Thank you for calling. My name is Alex, how may I assist you today?"

// Mirror is the optional fast-path shadow of active session state.
type Mirror interface {
	SaveSession(ctx context.Context, sessionID string, state redisstore.SessionState, ttl time.Duration)
	DeleteSession(ctx context.Context, sessionID string)
}

type Service struct {
	repo      *Repo
	audit     *audit.Logger
	mirror    Mirror // nil when no cache layer is configured
	mirrorTTL time.Duration
}

func NewService(repo *Repo, auditLog *audit.Logger, mirror Mirror, mirrorTTL time.Duration) *Service {
	return &Service{repo: repo, audit: auditLog, mirror: mirror, mirrorTTL: mirrorTTL}
}

type StartResult struct {
	Session  *models.CallSession
	Token    string
	Greeting string
}

// Start creates a session row, appends the fixed greeting as the first
// message and mirrors the nascent state into the cache.
func (s *Service) Start(ctx context.Context, userID string, callerInfo map[string]any, ip, userAgent string) (*StartResult, error) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")

	sess := &models.CallSession{
		UserID:       userID,
		SessionToken: token,
		Status:       models.StatusActive,
	}
	if callerInfo != nil {
		if b, err := json.Marshal(callerInfo); err == nil {
			sess.CallerInfo = datatypes.JSON(b)
		}
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}

	greetingMsg := &models.ChatMessage{
		SessionID: sess.ID,
		Role:      "assistant",
		Content:   Greeting,
		Speaker:   "Agent",
	}
	if err := s.repo.InsertMessage(ctx, greetingMsg); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.mirror.SaveSession(ctx, sess.ID, redisstore.SessionState{
			UserID:    userID,
			Token:     token,
			CreatedAt: sess.StartedAt,
			Messages:  []redisstore.Turn{{Role: "assistant", Content: Greeting}},
		}, s.mirrorTTL)
	}

	s.audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		EventType:  audit.EventSessionStart,
		Resource:   "session",
		Action:     "create",
		IPAddress:  ip,
		UserAgent:  userAgent,
		StatusCode: 201,
	})

	return &StartResult{Session: sess, Token: token, Greeting: Greeting}, nil
}

type EndResult struct {
	Session    *models.CallSession
	Transcript []models.ChatMessage
}

// End closes an owned session: sets status, computes duration, counts
// messages, returns the ordered transcript and evicts the cache entry.
// Foreign sessions are indistinguishable from missing ones.
func (s *Service) End(ctx context.Context, sessionID, userID, ip, userAgent string) (*EndResult, error) {
	sess, err := s.repo.GetOwned(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	sess.Status = models.StatusEnded
	sess.EndedAt = &now
	sess.DurationSeconds = int(now.Sub(sess.StartedAt).Seconds())

	transcript, err := s.repo.Transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.MessageCount = len(transcript)

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.mirror.DeleteSession(ctx, sessionID)
	}

	s.audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		EventType:  audit.EventSessionEnd,
		Resource:   "session",
		Action:     "end",
		IPAddress:  ip,
		UserAgent:  userAgent,
		StatusCode: 200,
	})

	return &EndResult{Session: sess, Transcript: transcript}, nil
}

type Page struct {
	Sessions []models.CallSession
	Page     int
	PerPage  int
	Total    int64
	Pages    int64
}

// List pages through a user's sessions, newest first, optionally filtered by
// status.
func (s *Service) List(ctx context.Context, userID, status string, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	sessions, total, err := s.repo.ListByOwner(ctx, userID, status, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	return &Page{
		Sessions: sessions,
		Page:     page,
		PerPage:  perPage,
		Total:    total,
		Pages:    (total + int64(perPage) - 1) / int64(perPage),
	}, nil
}

type Scores struct {
	Overall        *float64 `json:"overall_score"`
	Empathy        *float64 `json:"empathy_score"`
	Clarity        *float64 `json:"clarity_score"`
	ProblemSolving *float64 `json:"problem_solving_score"`
}

func (sc Scores) validate() error {
	for _, v := range []*float64{sc.Overall, sc.Empathy, sc.Clarity, sc.ProblemSolving} {
		if v != nil && (*v < 0 || *v > 100) {
			return ErrInvalidScore
		}
	}
	return nil
}

// Evaluate writes the four performance scores onto a session. Callers are
// role-gated upstream; ownership is not required here.
func (s *Service) Evaluate(ctx context.Context, sessionID string, scores Scores, evaluatorID, ip, userAgent string) (*models.CallSession, error) {
	if err := scores.validate(); err != nil {
		return nil, err
	}

	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sess.OverallScore = scores.Overall
	sess.EmpathyScore = scores.Empathy
	sess.ClarityScore = scores.Clarity
	sess.ProblemSolvingScore = scores.ProblemSolving

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		UserID:     &evaluatorID,
		EventType:  audit.EventSessionEvaluate,
		Resource:   "session",
		Action:     "evaluate",
		IPAddress:  ip,
		UserAgent:  userAgent,
		StatusCode: 200,
		Metadata:   map[string]any{"session_id": sessionID},
	})

	return sess, nil
}

type Evaluation struct {
	Session    models.CallSession   `json:"session"`
	Transcript []models.ChatMessage `json:"transcript"`
	User       *models.User         `json:"user"`
}

// Evaluations returns sessions with full transcripts for scoring.
func (s *Service) Evaluations(ctx context.Context, status, userID string, limit int) ([]Evaluation, error) {
	if status == "" {
		status = models.StatusEnded
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sessions, err := s.repo.ListByStatus(ctx, status, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]Evaluation, 0, len(sessions))
	for i := range sessions {
		transcript, err := s.repo.Transcript(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Evaluation{
			Session:    sessions[i],
			Transcript: transcript,
			User:       sessions[i].User,
		})
	}
	return out, nil
}

// PurgeEnded deletes ended sessions older than the retention window.
func (s *Service) PurgeEnded(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteEndedBefore(ctx, time.Now().UTC().Add(-retention))
}
