package domain

import "time"

// Activity actions recorded by the services.
const (
	ActionUserSignup        = "USER_SIGNUP"
	ActionLoginSuccess      = "LOGIN_SUCCESS"
	ActionLoginFailed       = "LOGIN_FAILED"
	ActionAccountLocked     = "ACCOUNT_LOCKED"
	ActionOTPSent           = "OTP_SENT"
	ActionOTPFailed         = "OTP_FAILED"
	ActionPasswordResetReq  = "PASSWORD_RESET_REQUEST"
	ActionPasswordReset     = "PASSWORD_RESET"
	ActionLogout            = "LOGOUT"
	ActionLogoutAll         = "LOGOUT_ALL"
	ActionProfileUpdated    = "PROFILE_UPDATED"
	ActionUserDeleted       = "USER_DELETED"
	ActionBookCreated       = "BOOK_CREATED"
	ActionBookUpdated       = "BOOK_UPDATED"
	ActionBookDeleted       = "BOOK_DELETED"
	ActionBookReviewed      = "BOOK_REVIEWED"
	ActionBookSold          = "BOOK_SOLD"
	ActionRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ActionUnauthorized      = "UNAUTHORIZED_ACCESS"
)

const (
	ResourceUser = "user"
	ResourceBook = "book"
	ResourceAuth = "auth"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ActivityLog is one entry of the security and usage trail.
type ActivityLog struct {
	ID           string    `json:"_id"`
	UserID       string    `json:"userId,omitempty"`
	UserEmail    string    `json:"userEmail,omitempty"`
	UserRole     string    `json:"userRole,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Status       string    `json:"status"`
	Severity     string    `json:"severity"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RequestMeta carries the caller attributes copied into activity logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}
