package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider generates one assistant reply from an ordered conversation.
// TokensUsed is zero when the upstream does not report usage.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (reply string, tokensUsed int, err error)
}
