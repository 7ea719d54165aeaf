package chat

import "strings"

// Rule pairs a predicate with a canned response. Rules are evaluated
// top-to-bottom; the first match wins.
type Rule struct {
	Match    func(lower string) bool
	Response string
}

// Fallback is the deterministic responder used when no generation provider
// is configured. Same input, same category, every time.
type Fallback struct {
	rules       []Rule
	defaultResp string
}

func (f *Fallback) Respond(text string) string {
	lower := strings.ToLower(text)
	for _, r := range f.rules {
		if r.Match(lower) {
			return r.Response
		}
	}
	return f.defaultResp
}

func anyOf(words ...string) func(string) bool {
	return func(lower string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

// NewGenericFallback covers the general customer-service categories in fixed
// priority order: greeting, problem, refund, billing, thanks, goodbye,
// escalation.
func NewGenericFallback() *Fallback {
	return &Fallback{
		rules: []Rule{
			{anyOf("hello", "hi", "hey"),
				"Hello! How can I help you today?"},
			{anyOf("problem", "issue", "broken", "not working"),
				"I'm sorry to hear you're experiencing issues. Can you please describe what's happening in more detail?"},
			{anyOf("refund", "money back", "return"),
				"I understand you'd like to discuss a refund. Let me look into that for you. Can you provide your order number?"},
			{anyOf("billing", "charge", "payment"),
				"I can help you with billing questions. Could you tell me more about the specific charge you're asking about?"},
			{anyOf("thank", "thanks"),
				"You're welcome! Is there anything else I can help you with today?"},
			{anyOf("bye", "goodbye", "that's all"),
				"Thank you for calling. Have a wonderful day! Goodbye."},
			{anyOf("speak", "manager", "supervisor"),
				"I understand you'd like to speak with a supervisor. Please hold while I transfer your call."},
		},
		defaultResp: "I understand. Could you please provide more details so I can better assist you?",
	}
}

// NewRestrictedFallback only assists with delivery, order and app issues.
// The topic gate runs before the keyword dispatch, so off-topic input gets
// the hotline redirect even when it would match a later rule.
func NewRestrictedFallback() *Fallback {
	delivery := anyOf("delivery", "rider", "late", "tracking", "package", "shipping", "where is my")
	order := anyOf("order", "wrong item", "refund", "cancel", "damaged", "missing", "return")
	appIssues := anyOf("app", "website", "login", "internet", "connection", "loading", "error")
	smallTalk := anyOf("hello", "hi", "hey", "thank")

	offTopic := func(lower string) bool {
		return !delivery(lower) && !order(lower) && !appIssues(lower) && !smallTalk(lower)
	}

	return &Fallback{
		rules: []Rule{
			{offTopic,
				"I apologize, but I can only assist with delivery, order, or app-related issues. For other concerns, please contact our main hotline at 123-4567."},
			{anyOf("hello", "hi", "hey"),
				"Hello! I can help with delivery, order, or app issues. What seems to be the problem?"},
			{delivery,
				"I understand you're having delivery concerns. Can you provide your tracking number or order ID?"},
			{order,
				"I'm sorry about your order issue. Please provide your order number so I can assist you."},
			{appIssues,
				"I understand you're experiencing technical difficulties. Have you tried clearing your app cache or reinstalling?"},
			{anyOf("thank", "thanks"),
				"You're welcome! Is there anything else I can help you with today?"},
			{anyOf("bye", "goodbye"),
				"Thank you for calling. Have a great day!"},
		},
		defaultResp: "Could you please provide more details about your delivery, order, or app issue?",
	}
}

// NewFallback selects a responder by configured mode.
func NewFallback(mode string) *Fallback {
	if mode == "restricted" {
		return NewRestrictedFallback()
	}
	return NewGenericFallback()
}
