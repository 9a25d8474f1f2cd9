package telegram

import (
	"testing"
	"time"
)

func TestNewClient_InvalidInput(t *testing.T) {
	// The bot token is validated against the API first, so an empty
	// token or a non-numeric chat ID must both surface as errors.
	if _, err := NewClient("", "not-a-number", 3, time.Second); err == nil {
		t.Error("expected error for invalid client input, got nil")
	}
}
