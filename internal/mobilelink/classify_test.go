package mobilelink

import "testing"

func TestLooksLikeBotBlock(t *testing.T) {
	blocked := []string{
		"CAPTCHA required to continue",
		"<html>Access Denied</html>",
		"Request unsuccessful. Incapsula incident ID: 449000",
		"suspected BOT traffic",
	}
	for _, text := range blocked {
		if !LooksLikeBotBlock(text) {
			t.Errorf("expected bot block for %q", text)
		}
	}

	clean := []string{
		"",
		`{"userId":"u-1"}`,
		"<html>Sign in to Mobile Link</html>",
	}
	for _, text := range clean {
		if LooksLikeBotBlock(text) {
			t.Errorf("unexpected bot block for %q", text)
		}
	}
}

func TestExtractProviderError(t *testing.T) {
	body := `<html>Unable to sign you in.<br>Correlation ID: xyz<br>AADB2C90118: The user has forgotten their password.</html>`
	if code := ExtractProviderError(body); code != "AADB2C90118" {
		t.Fatalf("unexpected code: %q", code)
	}
	if code := ExtractProviderError("<html>no codes here</html>"); code != "" {
		t.Fatalf("expected empty code, got %q", code)
	}
	// Partial prefixes must not match.
	if code := ExtractProviderError("AADB2C901"); code != "" {
		t.Fatalf("expected empty code for short digits, got %q", code)
	}
}

func TestMapProviderError(t *testing.T) {
	cases := []struct {
		code     string
		want     string
		wantHint bool
	}{
		{"AADB2C90091", CodeAccessDenied, false},
		{"AADB2C90006", CodeAccessDenied, false},
		{"AADB2C90118", CodePasswordResetRequired, true},
		{"AADB2C90057", CodeAccountLocked, true},
		{"AADB2C90072", CodeAccountLocked, true},
		{"AADB2C90225", CodeInvalidCredentials, false},
		{"AADB2C99999", CodeB2CError, true},
		{"", CodeUnknown, false},
		{"garbage", CodeB2CError, true},
	}

	for _, tc := range cases {
		got, hint := MapProviderError(tc.code)
		if got != tc.want {
			t.Errorf("MapProviderError(%q) = %q, want %q", tc.code, got, tc.want)
		}
		if tc.wantHint && hint == "" {
			t.Errorf("MapProviderError(%q): expected hint", tc.code)
		}
	}
}
