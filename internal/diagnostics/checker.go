package diagnostics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lecture-companion/internal/domain"
)

// Checker validates the configured processing server before tracking starts.
type Checker struct {
	do      func(req *http.Request) (*http.Response, error)
	timeout time.Duration
}

// NewChecker builds a checker using a real HTTP transport.
func NewChecker() *Checker {
	client := &http.Client{Timeout: 5 * time.Second}
	return &Checker{
		do:      client.Do,
		timeout: 5 * time.Second,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.HealthReport {
	checks := []domain.CheckResult{
		c.checkServerURL(settings.ServerURL),
		c.checkServerHealth(settings.ServerURL),
		c.checkPollInterval(settings.PollIntervalSeconds),
	}

	degraded := false
	for _, check := range checks {
		if check.Status == domain.CheckStatusFail {
			degraded = true
			break
		}
	}

	return domain.HealthReport{
		CheckedAt: time.Now().UTC(),
		Degraded:  degraded,
		Checks:    checks,
	}
}

// checkServerURL validates the configured base URL shape.
func (c *Checker) checkServerURL(serverURL string) domain.CheckResult {
	check := domain.CheckResult{Name: "Server URL"}

	parsed, err := url.Parse(serverURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		check.Status = domain.CheckStatusFail
		check.Message = fmt.Sprintf("Server URL is not usable: %q", serverURL)
		check.Hint = "Set a full http(s) URL for the processing server in settings."
		return check
	}

	check.Status = domain.CheckStatusPass
	check.Message = fmt.Sprintf("Server URL looks valid: %s", serverURL)
	return check
}

// checkServerHealth probes the server health endpoint.
func (c *Checker) checkServerHealth(serverURL string) domain.CheckResult {
	check := domain.CheckResult{Name: "Server reachability"}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/api/health", nil)
	if err != nil {
		check.Status = domain.CheckStatusFail
		check.Message = fmt.Sprintf("Cannot build health request for %s", serverURL)
		check.Hint = "Fix the server URL in settings."
		return check
	}

	resp, err := c.do(req)
	if err != nil {
		check.Status = domain.CheckStatusFail
		check.Message = fmt.Sprintf("Server is unreachable: %v", err)
		check.Hint = "Start the processing server or fix the URL, then refresh diagnostics."
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		check.Status = domain.CheckStatusFail
		check.Message = fmt.Sprintf("Health endpoint returned %d", resp.StatusCode)
		check.Hint = "The server is up but unhealthy. Check its logs."
		return check
	}

	check.Status = domain.CheckStatusPass
	check.Message = "Server responded to health probe."
	return check
}

// checkPollInterval sanity-checks the status polling cadence.
func (c *Checker) checkPollInterval(seconds int) domain.CheckResult {
	check := domain.CheckResult{Name: "Poll interval"}

	if seconds <= 0 {
		check.Status = domain.CheckStatusFail
		check.Message = fmt.Sprintf("Poll interval of %ds would disable tracking.", seconds)
		check.Hint = "Use a positive number of seconds, 3 is the default."
		return check
	}
	if seconds > 60 {
		check.Status = domain.CheckStatusFail
		check.Message = fmt.Sprintf("Poll interval of %ds makes progress updates useless.", seconds)
		check.Hint = "Use a value of 60 seconds or less."
		return check
	}

	check.Status = domain.CheckStatusPass
	check.Message = fmt.Sprintf("Polling every %ds.", seconds)
	return check
}

// NewCheckerForTests creates a checker with an injectable transport.
func NewCheckerForTests(do func(req *http.Request) (*http.Response, error)) *Checker {
	return &Checker{
		do:      do,
		timeout: time.Second,
	}
}
