package mail_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/mail"
)

// ──────────────────────────────────────────────────
// Test doubles
// ──────────────────────────────────────────────────

type fakeTransport struct {
	sent    []*mail.Message
	sendErr error
}

func (f *fakeTransport) Send(_ context.Context, msg *mail.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeItemFinder struct {
	items []mail.Item
	err   error
}

func (f *fakeItemFinder) FindItemsByIDs(_ context.Context, _ []string) ([]mail.Item, error) {
	return f.items, f.err
}

type fakeGenerator struct {
	ext string
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, _ []mail.Item, rfqNo string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(os.TempDir(), rfqNo+f.ext)
	if err := os.WriteFile(path, []byte("generated"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func testItems() []mail.Item {
	return []mail.Item{
		{ID: "item-1", Title: "Ball Valve", Code: "BV-100", Manufacturer: "Acme", Quantity: 4, Unit: "pcs", Price: 120.50},
		{ID: "item-2", Title: "Gasket Kit", Code: "GK-20", Manufacturer: "Acme", Quantity: 10, Unit: "sets", Price: 8.75},
	}
}

func newTestHandlers(transport *fakeTransport, finder *fakeItemFinder) *mail.Handlers {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mail.NewHandlers(transport, finder,
		&fakeGenerator{ext: ".pdf"},
		&fakeGenerator{ext: ".xlsx"},
		logger,
	)
}

// ──────────────────────────────────────────────────
// Simple kinds
// ──────────────────────────────────────────────────

func TestVerifyOTP_SendsTemplate(t *testing.T) {
	transport := &fakeTransport{}
	h := newTestHandlers(transport, nil)

	err := h.VerifyOTP(context.Background(), mail.VerifyOTPPayload{
		Email: "alice@example.com",
		OTP:   "123456",
	})
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}

	if len(transport.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(transport.sent))
	}
	msg := transport.sent[0]
	if msg.To != "alice@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.TemplateName != "otp" {
		t.Errorf("TemplateName = %q", msg.TemplateName)
	}
	if msg.TemplateData["otp"] != "123456" {
		t.Errorf("otp = %v", msg.TemplateData["otp"])
	}
	// Name falls back when absent.
	if msg.TemplateData["name"] != "there" {
		t.Errorf("name = %v, want fallback", msg.TemplateData["name"])
	}
}

func TestVerifyOTP_MissingFieldsAreTerminal(t *testing.T) {
	transport := &fakeTransport{}
	h := newTestHandlers(transport, nil)

	err := h.VerifyOTP(context.Background(), mail.VerifyOTPPayload{Email: "alice@example.com"})
	if err == nil {
		t.Fatal("expected error for missing otp")
	}
	if !conveyor.IsTerminal(err) {
		t.Errorf("expected terminal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "otp") {
		t.Errorf("error should name the missing field: %v", err)
	}
	if len(transport.sent) != 0 {
		t.Error("nothing should be sent on validation failure")
	}
}

func TestResendOTP_GeneratesSixDigitCode(t *testing.T) {
	transport := &fakeTransport{}
	h := newTestHandlers(transport, nil)

	if err := h.ResendOTP(context.Background(), mail.ResendOTPPayload{Email: "bob@example.com"}); err != nil {
		t.Fatalf("ResendOTP: %v", err)
	}

	otp, ok := transport.sent[0].TemplateData["otp"].(string)
	if !ok || len(otp) != 6 {
		t.Fatalf("otp = %v, want six digits", transport.sent[0].TemplateData["otp"])
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			t.Fatalf("otp %q contains non-digit", otp)
		}
	}
}

func TestFollowUpReminder_StepOutOfRange(t *testing.T) {
	h := newTestHandlers(&fakeTransport{}, nil)

	err := h.FollowUpReminder(context.Background(), mail.FollowUpPayload{
		UserID: "u1", Email: "u1@example.com", Step: 4,
	})
	if err == nil {
		t.Fatal("expected error for step 4")
	}
	if !conveyor.IsTerminal(err) {
		t.Errorf("expected terminal error, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// send-rfq
// ──────────────────────────────────────────────────

func validRFQPayload() mail.SendRFQPayload {
	return mail.SendRFQPayload{
		Email:       "vendor@example.com",
		CompanyName: "Acme Marine",
		RFQNo:       "RFQ-2026-01-001",
		Subject:     "RFQ RFQ-2026-01-001",
		Body:        "Please quote the attached items.",
		ItemIDs:     []string{"item-1", "item-2"},
	}
}

func TestSendRFQ_AttachesAndCleansUp(t *testing.T) {
	transport := &fakeTransport{}
	h := newTestHandlers(transport, &fakeItemFinder{items: testItems()})

	if err := h.SendRFQ(context.Background(), validRFQPayload()); err != nil {
		t.Fatalf("SendRFQ: %v", err)
	}

	msg := transport.sent[0]
	if len(msg.Attachments) != 2 {
		t.Fatalf("got %d attachments, want 2", len(msg.Attachments))
	}
	for _, a := range msg.Attachments {
		if _, err := os.Stat(a.Path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("temp file %s should be removed after send", a.Path)
		}
	}
}

func TestSendRFQ_CleansUpOnSendFailure(t *testing.T) {
	sendErr := errors.New("relay unavailable")
	transport := &fakeTransport{sendErr: sendErr}
	h := newTestHandlers(transport, &fakeItemFinder{items: testItems()})

	err := h.SendRFQ(context.Background(), validRFQPayload())
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected the send error, got %v", err)
	}
	if conveyor.IsTerminal(err) {
		t.Error("transport failure must stay retryable")
	}

	// Both generated files are gone despite the failure.
	for _, ext := range []string{".pdf", ".xlsx"} {
		path := filepath.Join(os.TempDir(), "RFQ-2026-01-001"+ext)
		if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
			t.Errorf("temp file %s should be removed on failure", path)
		}
	}
}

func TestSendRFQ_PDFFailureStillRemovesNothingExtra(t *testing.T) {
	transport := &fakeTransport{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := mail.NewHandlers(transport, &fakeItemFinder{items: testItems()},
		&fakeGenerator{err: errors.New("disk full")},
		&fakeGenerator{ext: ".xlsx"},
		logger,
	)

	err := h.SendRFQ(context.Background(), validRFQPayload())
	if err == nil || !strings.Contains(err.Error(), "generate pdf") {
		t.Fatalf("expected pdf generation error, got %v", err)
	}
	if len(transport.sent) != 0 {
		t.Error("nothing should be sent when generation fails")
	}
}

func TestSendRFQ_NoItemsIsTerminal(t *testing.T) {
	h := newTestHandlers(&fakeTransport{}, &fakeItemFinder{})

	err := h.SendRFQ(context.Background(), validRFQPayload())
	if err == nil {
		t.Fatal("expected error when no items are found")
	}
	if !conveyor.IsTerminal(err) {
		t.Errorf("expected terminal error, got %v", err)
	}
}

func TestSendRFQ_FinderErrorIsRetryable(t *testing.T) {
	h := newTestHandlers(&fakeTransport{}, &fakeItemFinder{err: errors.New("connection refused")})

	err := h.SendRFQ(context.Background(), validRFQPayload())
	if err == nil {
		t.Fatal("expected error")
	}
	if conveyor.IsTerminal(err) {
		t.Error("store outage must stay retryable")
	}
}

func TestSendRFQ_MissingItemIDsIsTerminal(t *testing.T) {
	h := newTestHandlers(&fakeTransport{}, &fakeItemFinder{items: testItems()})

	p := validRFQPayload()
	p.ItemIDs = nil
	err := h.SendRFQ(context.Background(), p)
	if !conveyor.IsTerminal(err) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}
