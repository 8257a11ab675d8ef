// Package notification holds the outbound channel adapters used by alert
// fan-out: the LINE push gateway, the SMTP email gateway, and recording test
// doubles for both.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PushSender delivers a text message to one external messaging identity.
type PushSender interface {
	SendPush(ctx context.Context, recipientID, text string) error
}

// EmailSender delivers one message to a batch of addresses.
type EmailSender interface {
	SendEmail(ctx context.Context, subject, body string, to []string) error
}

// ErrNotConfigured is returned by gateways that lack credentials.
var ErrNotConfigured = errors.New("channel not configured")

// DeliveryError is a non-2xx answer from a gateway.
type DeliveryError struct {
	Channel    string
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s gateway returned status %d: %s", e.Channel, e.StatusCode, e.Body)
}

// RecipientsRefusedError reports addresses the mail server rejected. When
// Accepted is non-zero the message was still delivered to the others.
type RecipientsRefusedError struct {
	Refused  map[string]error
	Accepted int
}

func (e *RecipientsRefusedError) Error() string {
	addrs := make([]string, 0, len(e.Refused))
	for a := range e.Refused {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = fmt.Sprintf("%s (%v)", a, e.Refused[a])
	}
	return fmt.Sprintf("smtp: %d recipient(s) refused, %d accepted: %s",
		len(addrs), e.Accepted, strings.Join(parts, "; "))
}

// Partial reports whether the message reached at least one recipient.
func (e *RecipientsRefusedError) Partial() bool {
	return e.Accepted > 0
}

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type PushCall struct {
	RecipientID string
	Text        string
}

// MockPushSender records pushes. FailFor makes individual recipients fail.
type MockPushSender struct {
	mu         sync.Mutex
	calls      []PushCall
	ShouldFail bool
	FailError  string
	FailFor    map[string]bool
}

func (m *MockPushSender) SendPush(_ context.Context, recipientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PushCall{RecipientID: recipientID, Text: text})
	if m.ShouldFail || m.FailFor[recipientID] {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockPushSender) Calls() []PushCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PushCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type EmailCall struct {
	To      []string
	Subject string
	Body    string
}

// MockEmailSender records batches. RefuseFor makes individual addresses
// refused the way an SMTP server would.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
	RefuseFor  map[string]bool
}

func (m *MockEmailSender) SendEmail(_ context.Context, subject, body string, to []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: append([]string(nil), to...), Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	refused := map[string]error{}
	for _, addr := range to {
		if m.RefuseFor[addr] {
			refused[addr] = errors.New("550 no such user")
		}
	}
	if len(refused) > 0 {
		return &RecipientsRefusedError{Refused: refused, Accepted: len(to) - len(refused)}
	}
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
