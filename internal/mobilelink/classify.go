package mobilelink

import (
	"regexp"
	"strings"
)

// Substrings that mark a WAF/captcha interstitial. These pages can arrive
// with any status code, so the body scan runs before status evaluation.
var botBlockIndicators = []string{
	"captcha",
	"access denied",
	"incapsula",
	"bot",
	"request unsuccessful",
}

// LooksLikeBotBlock reports whether the body matches a known anti-bot page.
func LooksLikeBotBlock(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range botBlockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

var providerErrorPattern = regexp.MustCompile(`AADB2C\d{5}`)

// ExtractProviderError returns the first embedded B2C error code
// (e.g. "AADB2C90118") or "" if the body carries none.
func ExtractProviderError(text string) string {
	return providerErrorPattern.FindString(text)
}

// MapProviderError maps a B2C error code to the auth error taxonomy.
// Recognized-but-unmapped codes degrade to CodeB2CError with the raw code as
// hint; an empty code yields CodeUnknown. Never panics.
func MapProviderError(code string) (string, string) {
	switch code {
	case "":
		return CodeUnknown, ""
	case "AADB2C90091", "AADB2C90006":
		// User cancelled or was denied by the policy.
		return CodeAccessDenied, ""
	case "AADB2C90118":
		return CodePasswordResetRequired, "the account requires a password reset; complete it in the Mobile Link web app"
	case "AADB2C90057", "AADB2C90072":
		return CodeAccountLocked, "too many failed attempts; the account is temporarily locked"
	case "AADB2C90225":
		return CodeInvalidCredentials, ""
	default:
		return CodeB2CError, code
	}
}
