package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// UpstreamMessage extracts error.message from an OpenAI-style error body,
// falling back to the trimmed body text.
func UpstreamMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}

	return truncate(strings.ToValidUTF8(strings.TrimSpace(string(body)), ""), maxUpstreamMessage)
}

const maxUpstreamMessage = 300

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TransportError classifies a failed call. callCtx is the per-call deadline
// context derived from parent: when the call deadline fired the result is a
// TimeoutError, when the caller gave up the parent's error is returned, and
// anything else becomes a ServiceError.
func TransportError(service string, parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%s call cancelled: %w", service, parent.Err())
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Service: service, Err: err}
	}
	return &ServiceError{Service: service, Err: err}
}
