package session

import (
	"context"
	"errors"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.CallSession{}, &models.ChatMessage{}, &models.AuditLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewService(NewRepo(db), audit.NewLogger(db), nil, time.Hour), db
}

func TestStartCreatesGreeting(t *testing.T) {
	svc, db := newTestService(t)

	res, err := svc.Start(context.Background(), "u1", map[string]any{"name": "Pat"}, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Token == "" || res.Greeting == "" {
		t.Fatalf("missing token or greeting: %+v", res)
	}
	if res.Session.Status != models.StatusActive {
		t.Fatalf("expected active session, got %s", res.Session.Status)
	}

	var msgs []models.ChatMessage
	if err := db.Where("session_id = ?", res.Session.ID).Find(&msgs).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != "assistant" || msgs[0].Content != Greeting {
		t.Fatalf("expected greeting as first message, got %+v", msgs)
	}

	var audits int64
	if err := db.Model(&models.AuditLog{}).
		Where("event_type = ?", audit.EventSessionStart).Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 1 {
		t.Fatalf("expected one session_start audit row, got %d", audits)
	}
}

func TestEndComputesDurationAndTranscript(t *testing.T) {
	svc, db := newTestService(t)

	res, err := svc.Start(context.Background(), "u1", nil, "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.Create(&models.ChatMessage{
		SessionID: res.Session.ID, Role: "user", Content: "hi", Speaker: "Caller",
	}).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	end, err := svc.End(context.Background(), res.Session.ID, "u1", "", "")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if end.Session.Status != models.StatusEnded {
		t.Fatalf("expected ended, got %s", end.Session.Status)
	}
	if end.Session.EndedAt == nil {
		t.Fatalf("ended_at not set")
	}
	if end.Session.MessageCount != 2 {
		t.Fatalf("expected message_count 2, got %d", end.Session.MessageCount)
	}
	if len(end.Transcript) != 2 {
		t.Fatalf("expected transcript of 2, got %d", len(end.Transcript))
	}
	if end.Transcript[0].Content != Greeting {
		t.Fatalf("greeting should be transcript position 0")
	}
	for i := 1; i < len(end.Transcript); i++ {
		if end.Transcript[i].Timestamp.Before(end.Transcript[i-1].Timestamp) {
			t.Fatalf("transcript out of order at %d", i)
		}
	}
}

func TestEndForeignSessionNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Start(context.Background(), "owner", nil, "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.End(context.Background(), res.Session.ID, "intruder", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var lastID string
	for i := 0; i < 5; i++ {
		res, err := svc.Start(ctx, "u1", nil, "", "")
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		lastID = res.Session.ID
	}
	if _, err := svc.End(ctx, lastID, "u1", "", ""); err != nil {
		t.Fatalf("end: %v", err)
	}
	// Another user's sessions must not appear.
	if _, err := svc.Start(ctx, "u2", nil, "", ""); err != nil {
		t.Fatalf("start u2: %v", err)
	}

	page, err := svc.List(ctx, "u1", "", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || page.Pages != 3 || len(page.Sessions) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d len=%d", page.Total, page.Pages, len(page.Sessions))
	}

	ended, err := svc.List(ctx, "u1", models.StatusEnded, 1, 20)
	if err != nil {
		t.Fatalf("list ended: %v", err)
	}
	if ended.Total != 1 || ended.Sessions[0].ID != lastID {
		t.Fatalf("status filter failed: %+v", ended)
	}
}

func TestEvaluateWritesScores(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Start(ctx, "u1", nil, "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f := func(v float64) *float64 { return &v }
	sess, err := svc.Evaluate(ctx, res.Session.ID, Scores{
		Overall: f(88), Empathy: f(90), Clarity: f(75), ProblemSolving: f(80),
	}, "admin-1", "", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sess.OverallScore == nil || *sess.OverallScore != 88 {
		t.Fatalf("overall score not written: %+v", sess.OverallScore)
	}

	if _, err := svc.Evaluate(ctx, res.Session.ID, Scores{Overall: f(101)}, "admin-1", "", ""); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if _, err := svc.Evaluate(ctx, "missing-id", Scores{}, "admin-1", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEvaluationsIncludeTranscripts(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	user := models.User{Email: "t@example.com", PasswordHash: "x", FullName: "Trainee", Role: models.RoleTrainee}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	res, err := svc.Start(ctx, user.ID, nil, "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.End(ctx, res.Session.ID, user.ID, "", ""); err != nil {
		t.Fatalf("end: %v", err)
	}

	evals, err := svc.Evaluations(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("evaluations: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(evals))
	}
	if len(evals[0].Transcript) != 1 {
		t.Fatalf("expected transcript with greeting, got %d", len(evals[0].Transcript))
	}
	if evals[0].User == nil || evals[0].User.Email != "t@example.com" {
		t.Fatalf("owning user not loaded: %+v", evals[0].User)
	}
}

func TestPurgeEndedRemovesOldSessions(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	res, err := svc.Start(ctx, "u1", nil, "", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.End(ctx, res.Session.ID, "u1", "", ""); err != nil {
		t.Fatalf("end: %v", err)
	}

	// Age the session past the retention cutoff.
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	if err := db.Model(&models.CallSession{}).
		Where("id = ?", res.Session.ID).
		Update("started_at", old).Error; err != nil {
		t.Fatalf("age session: %v", err)
	}

	n, err := svc.PurgeEnded(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged session, got %d", n)
	}

	var msgs int64
	if err := db.Model(&models.ChatMessage{}).
		Where("session_id = ?", res.Session.ID).Count(&msgs).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if msgs != 0 {
		t.Fatalf("messages should cascade on purge, %d left", msgs)
	}
}
