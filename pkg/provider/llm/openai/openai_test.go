package openai

import (
	"testing"
	"time"

	"github.com/voicecore/assistant/pkg/provider/llm"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestNew_ValidAPIKey(t *testing.T) {
	p, err := New("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestNew_WithOptions(t *testing.T) {
	p, err := New("sk-test",
		WithBaseURL("https://example.invalid/v1"),
		WithOrganization("org-123"),
		WithTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestProvider_ImplementsInvoker(t *testing.T) {
	// Invoke requires a live API call for the success path; here we only
	// assert the provider satisfies llm.Invoker and is safely constructed.
	p, err := New("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ llm.Invoker = p
}
