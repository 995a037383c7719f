package mail

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/job"
)

// otpTTLMinutes is the advertised validity window of a delivered OTP.
const otpTTLMinutes = 5

// maxAttempts is the total execution budget for mail jobs.
const maxAttempts = 3

// Handlers holds the dependencies shared by all mail job handlers.
type Handlers struct {
	transport  Transport
	items      ItemFinder
	pdf        FileGenerator
	sheet      FileGenerator
	logger     *slog.Logger
	removeFile func(string) error
}

// NewHandlers creates the mail handler set. items, pdf, and sheet are
// only needed by the send-rfq kind and may be nil when that kind is
// never enqueued.
func NewHandlers(transport Transport, items ItemFinder, pdf, sheet FileGenerator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		transport:  transport,
		items:      items,
		pdf:        pdf,
		sheet:      sheet,
		logger:     logger,
		removeFile: os.Remove,
	}
}

// Register registers every mail job kind with the registry. All kinds
// share the mail queue, a budget of three attempts, and removal of the
// record on success.
func (h *Handlers) Register(reg *job.Registry) {
	opts := []job.Option{
		job.WithQueue(Queue),
		job.WithMaxAttempts(maxAttempts),
		job.WithRemoveOnComplete(),
	}

	job.RegisterDefinition(reg, job.NewDefinition(KindVerifyOTP, h.VerifyOTP, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindResendOTP, h.ResendOTP, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindRequestPasswordReset, h.RequestPasswordReset, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindForgotPassword, h.ForgotPassword, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindResendTwoFactorOTP, h.ResendTwoFactorOTP, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindInviteUser, h.InviteUser, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindSendRFQ, h.SendRFQ, opts...))
	job.RegisterDefinition(reg, job.NewDefinition(KindFollowUpReminder, h.FollowUpReminder, opts...))
}

// VerifyOTP delivers a freshly issued OTP code.
func (h *Handlers) VerifyOTP(ctx context.Context, p VerifyOTPPayload) error {
	if err := requireFields(KindVerifyOTP, field{"email", p.Email}, field{"otp", p.OTP}); err != nil {
		return err
	}

	name := p.Name
	if name == "" {
		name = "there"
	}
	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      "Your OTP Code",
		TemplateName: "otp",
		TemplateData: map[string]any{
			"name":   name,
			"otp":    p.OTP,
			"expiry": otpTTLMinutes,
		},
	})
}

// ResendOTP generates a new six-digit code and delivers it.
func (h *Handlers) ResendOTP(ctx context.Context, p ResendOTPPayload) error {
	if err := requireFields(KindResendOTP, field{"email", p.Email}); err != nil {
		return err
	}

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      "Your OTP Code",
		TemplateName: "otp",
		TemplateData: map[string]any{
			"otp":    generateOTP(),
			"expiry": otpTTLMinutes,
		},
	})
}

// RequestPasswordReset delivers a password reset token.
func (h *Handlers) RequestPasswordReset(ctx context.Context, p PasswordResetPayload) error {
	if err := requireFields(KindRequestPasswordReset, field{"email", p.Email}, field{"token", p.Token}); err != nil {
		return err
	}

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      "Reset Your Password",
		TemplateName: "reset-password",
		TemplateData: map[string]any{"token": p.Token},
	})
}

// ForgotPassword delivers a reset link for the forgot-password flow.
func (h *Handlers) ForgotPassword(ctx context.Context, p ForgotPasswordPayload) error {
	if err := requireFields(KindForgotPassword,
		field{"email", p.Email}, field{"name", p.Name}, field{"resetLink", p.ResetLink},
	); err != nil {
		return err
	}

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      "Forgot Password",
		TemplateName: "forgot-password",
		TemplateData: map[string]any{
			"name":      p.Name,
			"resetLink": p.ResetLink,
		},
	})
}

// ResendTwoFactorOTP generates a new two-factor code and delivers it.
func (h *Handlers) ResendTwoFactorOTP(ctx context.Context, p TwoFactorOTPPayload) error {
	if err := requireFields(KindResendTwoFactorOTP, field{"email", p.Email}); err != nil {
		return err
	}

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      "Your OTP Code",
		TemplateName: "otp",
		TemplateData: map[string]any{
			"otp":    generateOTP(),
			"expiry": otpTTLMinutes,
		},
	})
}

// InviteUser delivers a role-scoped signup invitation.
func (h *Handlers) InviteUser(ctx context.Context, p InviteUserPayload) error {
	if err := requireFields(KindInviteUser,
		field{"email", p.Email}, field{"inviteLink", p.InviteLink}, field{"role", p.Role},
	); err != nil {
		return err
	}

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      "You're Invited",
		TemplateName: "invite-user",
		TemplateData: map[string]any{
			"inviteLink": p.InviteLink,
			"role":       p.Role,
		},
	})
}

// SendRFQ distributes an RFQ to one vendor. It fetches the referenced
// line items from the durable store, generates a PDF and a spreadsheet
// export as temporary files, and sends the message with both attached.
// The temporary files are removed on every exit path; a cleanup failure
// is logged and never masks the send outcome.
func (h *Handlers) SendRFQ(ctx context.Context, p SendRFQPayload) (err error) {
	if vErr := requireFields(KindSendRFQ,
		field{"email", p.Email}, field{"companyName", p.CompanyName},
		field{"rfqNo", p.RFQNo}, field{"emailSubject", p.Subject}, field{"emailBody", p.Body},
	); vErr != nil {
		return vErr
	}
	if len(p.ItemIDs) == 0 {
		return conveyor.Terminal(fmt.Errorf("%s: missing required field itemIds", KindSendRFQ))
	}

	items, err := h.items.FindItemsByIDs(ctx, p.ItemIDs)
	if err != nil {
		return fmt.Errorf("%s: find items for %s: %w", KindSendRFQ, p.RFQNo, err)
	}
	if len(items) == 0 {
		return conveyor.Terminal(fmt.Errorf("%s: no line items found for %s", KindSendRFQ, p.RFQNo))
	}

	var paths []string
	defer func() {
		for _, path := range paths {
			if rmErr := h.removeFile(path); rmErr != nil {
				h.logger.Error("remove temp attachment",
					slog.String("path", path),
					slog.String("error", rmErr.Error()),
				)
			}
		}
	}()

	pdfPath, err := h.pdf.Generate(ctx, items, p.RFQNo)
	if err != nil {
		return fmt.Errorf("%s: generate pdf for %s: %w", KindSendRFQ, p.RFQNo, err)
	}
	paths = append(paths, pdfPath)

	sheetPath, err := h.sheet.Generate(ctx, items, p.RFQNo)
	if err != nil {
		return fmt.Errorf("%s: generate spreadsheet for %s: %w", KindSendRFQ, p.RFQNo, err)
	}
	paths = append(paths, sheetPath)

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      p.Subject,
		TemplateName: "rfq",
		TemplateData: map[string]any{
			"companyName": p.CompanyName,
			"rfqNo":       p.RFQNo,
			"body":        p.Body,
			"terms":       p.Terms,
		},
		Attachments: []Attachment{
			{Filename: filepath.Base(pdfPath), Path: pdfPath},
			{Filename: filepath.Base(sheetPath), Path: sheetPath},
		},
	})
}

// FollowUpReminder sends one step of the onboarding reminder sequence.
func (h *Handlers) FollowUpReminder(ctx context.Context, p FollowUpPayload) error {
	if err := requireFields(KindFollowUpReminder, field{"userId", p.UserID}, field{"email", p.Email}); err != nil {
		return err
	}
	if p.Step < 1 || p.Step > 3 {
		return conveyor.Terminal(fmt.Errorf("%s: step %d out of range", KindFollowUpReminder, p.Step))
	}

	return h.transport.Send(ctx, &Message{
		To:           p.Email,
		Subject:      fmt.Sprintf("Reminder %d", p.Step),
		TemplateName: "follow-up",
		TemplateData: map[string]any{"step": p.Step},
	})
}

// ── helpers ──

type field struct {
	name  string
	value string
}

// requireFields returns a terminal error naming every missing field.
// Retrying cannot fix a malformed payload.
func requireFields(kind string, fields ...field) error {
	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return conveyor.Terminal(fmt.Errorf("%s: missing required fields: %s", kind, strings.Join(missing, ", ")))
}

// generateOTP returns a random six-digit code.
func generateOTP() string {
	return fmt.Sprintf("%06d", 100000+rand.IntN(900000))
}
