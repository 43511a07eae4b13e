package mobilelink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
)

var (
	csrfPattern    = regexp.MustCompile(`"csrf":"([^"]+)"`)
	transIDPattern = regexp.MustCompile(`"transId":"([^"]+)"`)
)

// Client owns one authenticated Mobile Link session. Session cookies live in
// the transport's cookie jar; the csrf token and transaction id from the last
// successful login are retained on the client. Access must be serialized by
// the caller: one in-flight Login or discovery call per account.
type Client struct {
	baseURL    string
	policy     string
	userAgent  string
	httpClient *http.Client

	csrfToken string
	transID   string

	// Set by LoginWithCookie; sent verbatim instead of jar cookies.
	cookieHeader string
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		policy:    cfg.Policy,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
	}, nil
}

// Login drives the six-step B2C handshake. One call is one pass: no retries
// are attempted here, the caller decides whether to try again. Any failure
// is a *AuthError.
func (c *Client) Login(ctx context.Context, email, password string) error {
	c.csrfToken = ""
	c.transID = ""
	c.cookieHeader = ""

	if err := c.fetchAntiforgery(ctx); err != nil {
		return err
	}

	landed, csrf, transID, err := c.signinStart(ctx, email)
	if err != nil {
		return err
	}

	if err := c.submitCredentials(ctx, landed, csrf, transID, email, password); err != nil {
		return err
	}

	if err := c.confirm(ctx, landed, csrf, transID); err != nil {
		return err
	}

	if err := c.verifySession(ctx); err != nil {
		return err
	}

	c.csrfToken = csrf
	c.transID = transID
	return nil
}

// LoginWithCookie trusts a user-supplied Cookie header instead of running the
// handshake, verifying it against the account status endpoint. Strictly
// weaker than Login but presents the same outcome shape.
func (c *Client) LoginWithCookie(ctx context.Context, cookieHeader string) error {
	cookieHeader = strings.TrimSpace(cookieHeader)
	if cookieHeader == "" {
		return authErr(CodeNotAuthenticated, StepCookieVerify, "cookie header is empty")
	}

	c.cookieHeader = cookieHeader
	resp, body, err := c.get(ctx, c.baseURL+"/api/v1/Account/status")
	if err != nil {
		c.cookieHeader = ""
		return transportErr(StepCookieVerify, err)
	}
	if LooksLikeBotBlock(body) {
		c.cookieHeader = ""
		return &AuthError{Code: CodeBotBlock, Step: StepCookieVerify, Message: "anti-bot interstitial", Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		c.cookieHeader = ""
		return &AuthError{Code: CodeNotAuthenticated, Step: StepCookieVerify, Message: "cookie rejected", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	return nil
}

// AccountStatus is a thin authenticated GET; any non-200 is an auth failure.
func (c *Client) AccountStatus(ctx context.Context) (map[string]any, error) {
	resp, body, err := c.get(ctx, c.baseURL+"/api/v1/Account/status")
	if err != nil {
		return nil, &APIError{Body: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Code: CodeNotAuthenticated, Step: StepAccountCall, Message: "account status rejected", Status: resp.StatusCode, Hint: truncateBody(body)}
	}

	var status map[string]any
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return status, nil
}

// ListApparatus fetches the raw apparatus list. 401/403 surface as auth
// failures so callers can trigger re-login; other unexpected responses are
// *APIError with a truncated body excerpt.
func (c *Client) ListApparatus(ctx context.Context) ([]RawApparatus, error) {
	resp, body, err := c.get(ctx, c.baseURL+"/api/v2/Apparatus/list")
	if err != nil {
		return nil, &APIError{Body: err.Error()}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Code: CodeNotAuthenticated, Step: StepAccountCall, Message: "apparatus list rejected", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: truncateBody(body)}
	}

	var apparatus []RawApparatus
	if err := json.Unmarshal([]byte(body), &apparatus); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return apparatus, nil
}

// DiscoverTanks is the collaborator entry point: fetch, normalize, and key
// by apparatus id.
func (c *Client) DiscoverTanks(ctx context.Context) (map[int64]PropaneTank, error) {
	apparatus, err := c.ListApparatus(ctx)
	if err != nil {
		return nil, err
	}

	tanks := make(map[int64]PropaneTank)
	for _, tank := range ParseTanks(apparatus) {
		tanks[tank.ApparatusID] = tank
	}
	return tanks, nil
}

func (c *Client) fetchAntiforgery(ctx context.Context) error {
	resp, body, err := c.get(ctx, c.baseURL+"/api/v1/Antiforgery/cookie")
	if err != nil {
		return transportErr(StepAntiforgery, err)
	}
	if resp.StatusCode >= 400 {
		return &AuthError{Code: CodeAntiforgeryFailed, Step: StepAntiforgery, Message: "antiforgery cookie fetch failed", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	return nil
}

// signinStart requests the hosted sign-in page and scrapes the csrf token
// and transaction id out of its embedded settings blob. Returns the URL the
// redirects landed on; the SelfAsserted and confirm endpoints are resolved
// relative to it.
func (c *Client) signinStart(ctx context.Context, email string) (*url.URL, string, string, error) {
	signinURL := c.baseURL + "/api/Auth/SignIn?email=" + url.QueryEscape(email)
	resp, body, err := c.get(ctx, signinURL)
	if err != nil {
		return nil, "", "", transportErr(StepSigninStart, err)
	}

	// Blocking pages can carry a success status; scan the body first.
	if LooksLikeBotBlock(body) {
		return nil, "", "", &AuthError{Code: CodeBotBlock, Step: StepSigninStart, Message: "anti-bot interstitial on sign-in page", Status: resp.StatusCode}
	}

	if code := ExtractProviderError(body); code != "" {
		mapped, hint := MapProviderError(code)
		return nil, "", "", &AuthError{Code: mapped, Step: StepSigninStart, Message: "identity provider rejected sign-in start", Status: resp.StatusCode, Hint: hint}
	}

	csrf := firstMatch(csrfPattern, body)
	transID := firstMatch(transIDPattern, body)
	if csrf == "" || transID == "" {
		return nil, "", "", &AuthError{Code: CodeParseFailed, Step: StepSigninStart, Message: "csrf/transId not found in sign-in page", Status: resp.StatusCode, Hint: truncateBody(body)}
	}

	return resp.Request.URL, csrf, transID, nil
}

func (c *Client) submitCredentials(ctx context.Context, landed *url.URL, csrf, transID, email, password string) error {
	endpoint := resolveEndpoint(landed, "SelfAsserted")
	endpoint.RawQuery = url.Values{
		"tx": {transID},
		"p":  {c.policy},
	}.Encode()

	form := url.Values{
		"request_type": {"RESPONSE"},
		"signInName":   {email},
		"password":     {password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return transportErr(StepCredentials, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-TOKEN", csrf)
	c.setCommonHeaders(req)

	resp, body, err := c.do(req)
	if err != nil {
		return transportErr(StepCredentials, err)
	}

	if LooksLikeBotBlock(body) {
		return &AuthError{Code: CodeBotBlock, Step: StepCredentials, Message: "anti-bot interstitial on credential submit", Status: resp.StatusCode}
	}

	// SelfAsserted reports failures both via status and via error codes
	// embedded in an otherwise-200 JSON body.
	code := ExtractProviderError(body)
	if code != "" {
		mapped, hint := MapProviderError(code)
		return &AuthError{Code: mapped, Step: StepCredentials, Message: "identity provider rejected credentials", Status: resp.StatusCode, Hint: hint}
	}
	if resp.StatusCode >= 500 {
		return &AuthError{Code: CodeHTTPError, Step: StepCredentials, Message: "credential submit failed", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	if resp.StatusCode >= 400 {
		return &AuthError{Code: CodeInvalidCredentials, Step: StepCredentials, Message: "credential submit failed", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	return nil
}

func (c *Client) confirm(ctx context.Context, landed *url.URL, csrf, transID string) error {
	endpoint := resolveEndpoint(landed, "api/CombinedSigninAndSignup/confirmed")
	endpoint.RawQuery = url.Values{
		"rememberMe": {"false"},
		"csrf_token": {csrf},
		"tx":         {transID},
		"p":          {c.policy},
	}.Encode()

	resp, body, err := c.get(ctx, endpoint.String())
	if err != nil {
		return transportErr(StepConfirm, err)
	}

	if LooksLikeBotBlock(body) {
		return &AuthError{Code: CodeBotBlock, Step: StepConfirm, Message: "anti-bot interstitial on confirm", Status: resp.StatusCode}
	}
	if code := ExtractProviderError(body); code != "" {
		mapped, hint := MapProviderError(code)
		return &AuthError{Code: mapped, Step: StepConfirm, Message: "identity provider rejected confirm", Status: resp.StatusCode, Hint: hint}
	}
	if resp.StatusCode >= 400 {
		return &AuthError{Code: CodeConfirmFailed, Step: StepConfirm, Message: "confirm redirect failed", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	return nil
}

func (c *Client) verifySession(ctx context.Context) error {
	resp, body, err := c.get(ctx, c.baseURL+"/api/v1/Account/status")
	if err != nil {
		return transportErr(StepVerify, err)
	}
	if LooksLikeBotBlock(body) {
		return &AuthError{Code: CodeBotBlock, Step: StepVerify, Message: "anti-bot interstitial on verification", Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return &AuthError{Code: CodeSessionNotEstablished, Step: StepVerify, Message: "account status check failed after login", Status: resp.StatusCode, Hint: truncateBody(body)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	c.setCommonHeaders(req)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response body: %w", err)
	}
	return resp, string(body), nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.cookieHeader != "" {
		req.Header.Set("Cookie", c.cookieHeader)
	}
}

// resolveEndpoint resolves an identity-provider endpoint as a sibling of the
// page the sign-in redirects landed on.
func resolveEndpoint(landed *url.URL, ref string) *url.URL {
	rel, err := url.Parse(ref)
	if err != nil {
		return landed
	}
	return landed.ResolveReference(rel)
}

func firstMatch(pattern *regexp.Regexp, body string) string {
	match := pattern.FindStringSubmatch(body)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
