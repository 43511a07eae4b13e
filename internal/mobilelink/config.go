package mobilelink

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://app.mobilelinkgen.com"
	defaultPolicy    = "B2C_1A_SignUpOrSigninOnline"
	defaultUserAgent = "mobilelink-go/1.0"
	defaultTimeout   = 15 * time.Second
)

// Config defines runtime configuration for a Mobile Link client.
type Config struct {
	BaseURL   string
	Policy    string
	UserAgent string
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.Policy) == "" {
		c.Policy = defaultPolicy
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

func (c Config) validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base url %q must be http(s)", c.BaseURL)
	}
	return nil
}
