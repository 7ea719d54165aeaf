package chat

import (
	"strings"
	"testing"
)

func TestGenericFallbackCategories(t *testing.T) {
	f := NewGenericFallback()

	cases := []struct {
		input string
		want  string
	}{
		{"Hello there", "Hello! How can I help you today?"},
		{"my device is broken", "describe what's happening"},
		{"I want a refund for order 123", "discuss a refund"},
		{"question about a charge on my card", "billing questions"},
		{"thanks a lot", "You're welcome"},
		{"ok goodbye", "Have a wonderful day"},
		{"let me speak to your manager", "supervisor"},
		{"xyzzy", "provide more details"},
	}
	for _, tc := range cases {
		got := f.Respond(tc.input)
		if !strings.Contains(got, tc.want) {
			t.Errorf("Respond(%q) = %q, want substring %q", tc.input, got, tc.want)
		}
	}
}

func TestGenericFallbackDeterministic(t *testing.T) {
	f := NewGenericFallback()
	first := f.Respond("I want a refund")
	for i := 0; i < 10; i++ {
		if got := f.Respond("I want a refund"); got != first {
			t.Fatalf("responses diverged: %q vs %q", got, first)
		}
	}
}

func TestGenericFallbackPriorityOrder(t *testing.T) {
	f := NewGenericFallback()
	// "hi" outranks "refund" because greeting sits higher in the ladder.
	got := f.Respond("hi, about my refund")
	if !strings.Contains(got, "How can I help you today") {
		t.Fatalf("expected greeting response, got %q", got)
	}
}

func TestRestrictedFallbackRedirectsOffTopic(t *testing.T) {
	f := NewRestrictedFallback()
	got := f.Respond("tell me about the weather")
	if !strings.Contains(got, "main hotline") {
		t.Fatalf("expected redirect, got %q", got)
	}
}

func TestRestrictedFallbackAllowedTopics(t *testing.T) {
	f := NewRestrictedFallback()

	if got := f.Respond("where is my package"); !strings.Contains(got, "tracking number") {
		t.Fatalf("delivery input got %q", got)
	}
	if got := f.Respond("I received the wrong item"); !strings.Contains(got, "order number") {
		t.Fatalf("order input got %q", got)
	}
	if got := f.Respond("the app keeps loading forever"); !strings.Contains(got, "technical difficulties") {
		t.Fatalf("app input got %q", got)
	}
	if got := f.Respond("hello"); !strings.Contains(got, "delivery, order, or app issues") {
		t.Fatalf("greeting got %q", got)
	}
}

func TestNewFallbackModeSelection(t *testing.T) {
	if got := NewFallback("restricted").Respond("what is the capital of France"); !strings.Contains(got, "hotline") {
		t.Fatalf("restricted mode not selected: %q", got)
	}
	if got := NewFallback("generic").Respond("what is the capital of France"); strings.Contains(got, "hotline") {
		t.Fatalf("generic mode should not redirect: %q", got)
	}
}
