package mobilelink

import (
	"fmt"
	"strings"
)

// Auth error codes. Every login failure maps to exactly one of these.
const (
	CodeAntiforgeryFailed     = "antiforgery_failed"
	CodeBotBlock              = "bot_block"
	CodeParseFailed           = "parse_failed"
	CodeInvalidCredentials    = "invalid_credentials"
	CodePasswordResetRequired = "password_reset_required"
	CodeAccountLocked         = "account_locked"
	CodeAccessDenied          = "access_denied"
	CodeB2CError              = "b2c_error"
	CodeConfirmFailed         = "confirm_failed"
	CodeSessionNotEstablished = "session_not_established"
	CodeNotAuthenticated      = "not_authenticated"
	CodeHTTPError             = "http_error"
	CodeUnknown               = "unknown"
)

// Handshake steps, used to pinpoint where a login attempt died.
const (
	StepAntiforgery  = "antiforgery"
	StepSigninStart  = "signin_start"
	StepCredentials  = "credentials"
	StepConfirm      = "confirm"
	StepVerify       = "verify"
	StepTransport    = "transport"
	StepAccountCall  = "account_call"
	StepCookieVerify = "cookie_verify"
)

// AuthError is a structured login/session failure. Code is always one of the
// Code* constants; unrecognized provider errors degrade to CodeB2CError or
// CodeUnknown rather than failing to classify.
type AuthError struct {
	Code    string
	Step    string
	Message string
	Status  int
	Hint    string
}

func (e *AuthError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mobilelink auth failed (%s at %s)", e.Code, e.Step)
	if e.Status != 0 {
		fmt.Fprintf(&b, " http=%d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

// APIError is a post-authentication API failure: unexpected status or shape
// on a data endpoint. Body is truncated for diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("mobilelink api transport error: %s", strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("mobilelink api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

const bodyExcerptLen = 200

func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > bodyExcerptLen {
		return body[:bodyExcerptLen] + "..."
	}
	return body
}

func authErr(code, step, message string) *AuthError {
	return &AuthError{Code: code, Step: step, Message: message}
}

func transportErr(step string, err error) *AuthError {
	return &AuthError{Code: CodeHTTPError, Step: StepTransport, Message: fmt.Sprintf("%s: %v", step, err)}
}
