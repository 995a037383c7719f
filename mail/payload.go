package mail

// Queue is the queue name all mail jobs run on.
const Queue = "mail"

// Job kinds handled by this package.
const (
	KindVerifyOTP            = "verify-otp"
	KindResendOTP            = "resend-otp"
	KindRequestPasswordReset = "request-password-reset"
	KindForgotPassword       = "forgot-password"
	KindResendTwoFactorOTP   = "resend-two-factor-otp"
	KindInviteUser           = "invite-user"
	KindSendRFQ              = "send-rfq"
	KindFollowUpReminder     = "follow-up-reminder"
)

// VerifyOTPPayload delivers a freshly issued OTP code.
type VerifyOTPPayload struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Name  string `json:"name,omitempty"`
}

// ResendOTPPayload requests a new OTP code for the given address. The
// code itself is generated at send time.
type ResendOTPPayload struct {
	Email string `json:"email"`
}

// PasswordResetPayload carries a password reset token.
type PasswordResetPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// ForgotPasswordPayload carries a reset link for the forgot-password
// flow.
type ForgotPasswordPayload struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	ResetLink string `json:"resetLink"`
}

// TwoFactorOTPPayload requests a two-factor OTP resend.
type TwoFactorOTPPayload struct {
	Email string `json:"email"`
}

// InviteUserPayload invites a new user with a role-scoped signup link.
type InviteUserPayload struct {
	Email      string `json:"email"`
	InviteLink string `json:"inviteLink"`
	Role       string `json:"role"`
}

// SendRFQPayload distributes an RFQ to one vendor with the line items
// attached as generated PDF and spreadsheet documents.
type SendRFQPayload struct {
	Email       string   `json:"email"`
	CompanyName string   `json:"companyName"`
	RFQNo       string   `json:"rfqNo"`
	Subject     string   `json:"emailSubject"`
	Body        string   `json:"emailBody"`
	Terms       string   `json:"terms,omitempty"`
	ItemIDs     []string `json:"itemIds"`
}

// FollowUpPayload is one step of the onboarding reminder sequence.
type FollowUpPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Step   int    `json:"step"`
}
