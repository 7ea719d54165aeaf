package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/ai"
	"github.com/callsim/callsim/internal/logger"
	"github.com/callsim/callsim/internal/models"
)

// ErrSessionNotFound covers both unknown and not-owned sessions so existence
// never leaks.
var ErrSessionNotFound = errors.New("session not found")

// SystemPrompt frames every generation request: persona plus topic
// constraints for the simulated agent.
const SystemPrompt = `You are a professional, empathetic AI call center agent for a customer service hotline.

Your responsibilities:
- Greet customers warmly and professionally
- Listen to their concerns and acknowledge their feelings
- Ask clarifying questions when needed
- Provide helpful solutions and information
- Remain calm and patient at all times
- Use clear, simple language
- End calls politely and ensure customer satisfaction

Guidelines:
- Keep responses concise (2-3 sentences max for natural conversation)
- Use appropriate filler words occasionally for natural speech
- Show empathy: "I understand", "I apologize for the inconvenience"
- Be solution-oriented
- Never be rude or dismissive

You are currently on a live call. Respond naturally as if speaking.`

// apologyResponse replaces any upstream generation failure; provider errors
// never reach the caller.
const apologyResponse = "I apologize, I'm having trouble processing that. Could you please repeat?"

const (
	speakerAgent  = "Agent"
	speakerCaller = "Caller"
)

// Prerenderer enqueues a best-effort TTS render of an assistant turn.
type Prerenderer interface {
	PublishTTS(ctx context.Context, text, lang string) error
}

type Service struct {
	db        *gorm.DB
	provider  ai.Provider // nil when no generation provider is configured
	fallback  *Fallback
	prerender Prerenderer // optional
}

func NewService(db *gorm.DB, provider ai.Provider, fallback *Fallback) *Service {
	if fallback == nil {
		fallback = NewGenericFallback()
	}
	return &Service{db: db, provider: provider, fallback: fallback}
}

// SetPrerenderer attaches the background TTS publisher.
func (s *Service) SetPrerenderer(p Prerenderer) { s.prerender = p }

// Respond handles one conversation turn. With a session id the user turn is
// persisted first and the full ordered history becomes the generation
// context; without one only the single turn is used. The reply is always a
// usable string: provider outages degrade to the fallback ladder or the
// apology line.
func (s *Service) Respond(ctx context.Context, userID, sessionID, userText string) (string, error) {
	var history []models.ChatMessage

	if sessionID != "" {
		var sess models.CallSession
		err := s.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", sessionID, userID).
			First(&sess).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrSessionNotFound
			}
			return "", err
		}

		userMsg := models.ChatMessage{
			SessionID: sessionID,
			Role:      "user",
			Content:   userText,
			Speaker:   speakerCaller,
		}
		if err := s.db.WithContext(ctx).Create(&userMsg).Error; err != nil {
			return "", err
		}

		if err := s.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Order("timestamp ASC, id ASC").
			Find(&history).Error; err != nil {
			return "", err
		}
	}

	reply, tokens := s.generate(ctx, userText, history)

	if sessionID != "" {
		assistantMsg := models.ChatMessage{
			SessionID: sessionID,
			Role:      "assistant",
			Content:   reply,
			Speaker:   speakerAgent,
		}
		if tokens > 0 {
			assistantMsg.TokensUsed = &tokens
		}
		if err := s.db.WithContext(ctx).Create(&assistantMsg).Error; err != nil {
			return "", err
		}

		if s.prerender != nil {
			if err := s.prerender.PublishTTS(ctx, reply, "en"); err != nil {
				logger.L.WithError(err).Warn("tts prerender enqueue failed")
			}
		}
	}

	return reply, nil
}

func (s *Service) generate(ctx context.Context, userText string, history []models.ChatMessage) (string, int) {
	if s.provider == nil {
		return s.fallback.Respond(userText), 0
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: "system", Content: SystemPrompt})
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	if len(history) == 0 {
		msgs = append(msgs, ai.Message{Role: "user", Content: userText})
	}

	reply, tokens, err := s.provider.Chat(ctx, msgs)
	if err != nil {
		logger.L.WithError(err).Error("generation provider failed")
		return apologyResponse, 0
	}
	return reply, tokens
}

// History returns a session's transcript in append order, gated by ownership.
func (s *Service) History(ctx context.Context, userID, sessionID string) ([]models.ChatMessage, error) {
	var sess models.CallSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var msgs []models.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
