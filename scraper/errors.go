package scraper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"
)

// Severity is the recovery class of a failure. It decides whether the
// run stops, the operation is retried, or the loop continues without
// the failed unit of work.
type Severity int

const (
	SeverityIgnorable Severity = iota
	SeverityTransient
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityTransient:
		return "transient"
	default:
		return "ignorable"
	}
}

// Action is the control-flow verdict paired one-to-one with a Severity.
type Action int

const (
	ActionContinue Action = iota
	ActionRetry
	ActionTerminate
)

// ActionFor maps a severity to its control-flow action.
func ActionFor(s Severity) Action {
	switch s {
	case SeverityFatal:
		return ActionTerminate
	case SeverityTransient:
		return ActionRetry
	default:
		return ActionContinue
	}
}

// ErrTimeout indicates a timed-out page or network operation.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
// RetryAfter carries the server wait hint when one was supplied.
type ErrRateLimited struct {
	Err        error
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrAntiBot indicates the target served a bot challenge instead of
// content.
type ErrAntiBot struct {
	Err error
}

func (e ErrAntiBot) Error() string {
	return fmt.Errorf("anti_bot: %w", e.Err).Error()
}

func (e ErrAntiBot) Unwrap() error {
	return e.Err
}

// ErrBrowserStart indicates the automation runtime failed to launch.
type ErrBrowserStart struct {
	Err error
}

func (e ErrBrowserStart) Error() string {
	return fmt.Errorf("browser_start: %w", e.Err).Error()
}

func (e ErrBrowserStart) Unwrap() error {
	return e.Err
}

// ErrBadTarget indicates a malformed or unusable target URL.
type ErrBadTarget struct {
	Err error
}

func (e ErrBadTarget) Error() string {
	return fmt.Errorf("bad_target: %w", e.Err).Error()
}

func (e ErrBadTarget) Unwrap() error {
	return e.Err
}

// ErrBadStatus indicates an HTTP error status from the target.
type ErrBadStatus struct {
	Status int
	Err    error
}

func (e ErrBadStatus) Error() string {
	return fmt.Errorf("status_%d: %w", e.Status, e.Err).Error()
}

func (e ErrBadStatus) Unwrap() error {
	return e.Err
}

// antiBotPhrases are the fixed challenge indicators, matched
// case-insensitively against error text and response bodies.
var antiBotPhrases = []string{
	"captcha",
	"challenge",
	"cloudflare",
	"access denied",
	"blocked",
	"bot detection",
	"security check",
}

// IsAntiBot reports whether err carries a bot-challenge signal. The
// run layer uses this to emit a distinct terminal message.
func IsAntiBot(err error) bool {
	if err == nil {
		return false
	}
	var antiBot ErrAntiBot
	if errors.As(err, &antiBot) {
		return true
	}
	return containsAntiBotPhrase(err.Error())
}

func containsAntiBotPhrase(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range antiBotPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// classificationRules is the ordered (predicate, severity) table.
// First match wins; anything unmatched is ignorable.
var classificationRules = []struct {
	match    func(error) bool
	severity Severity
}{
	{IsAntiBot, SeverityFatal},
	{isBrowserStart, SeverityFatal},
	{isBadTarget, SeverityFatal},
	{isPersistence, SeverityFatal},
	{isTimeout, SeverityTransient},
	{isRateLimited, SeverityTransient},
	{isServerStatus, SeverityTransient},
	{isConnection, SeverityTransient},
}

// Classify maps a failure to its severity via the rule table.
func Classify(err error) Severity {
	if err == nil {
		return SeverityIgnorable
	}
	for _, rule := range classificationRules {
		if rule.match(err) {
			return rule.severity
		}
	}
	return SeverityIgnorable
}

// RetryAfterHint extracts a server-supplied wait hint, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
		return rateLimited.RetryAfter, true
	}
	return 0, false
}

func isBrowserStart(err error) bool {
	var browserStart ErrBrowserStart
	return errors.As(err, &browserStart)
}

func isBadTarget(err error) bool {
	var badTarget ErrBadTarget
	return errors.As(err, &badTarget)
}

func isPersistence(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)
}

func isTimeout(err error) bool {
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func isRateLimited(err error) bool {
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return true
	}
	lowered := strings.ToLower(err.Error())
	return strings.Contains(lowered, "rate limit") ||
		strings.Contains(lowered, "too many requests") ||
		strings.Contains(lowered, "429")
}

func isServerStatus(err error) bool {
	var badStatus ErrBadStatus
	if errors.As(err, &badStatus) {
		return badStatus.Status >= 500
	}
	lowered := strings.ToLower(err.Error())
	return strings.Contains(lowered, "internal server error") ||
		strings.Contains(lowered, "bad gateway") ||
		strings.Contains(lowered, "service unavailable")
}

func isConnection(err error) bool {
	var conn ErrConnection
	if errors.As(err, &conn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	lowered := strings.ToLower(err.Error())
	return strings.Contains(lowered, "connection refused") ||
		strings.Contains(lowered, "connection reset") ||
		strings.Contains(lowered, "no such host")
}

// errorTypeLabel buckets an error for metrics and run summaries.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if IsAntiBot(err) {
		return "anti_bot"
	}
	var browserStart ErrBrowserStart
	if errors.As(err, &browserStart) {
		return "browser_start"
	}
	var badTarget ErrBadTarget
	if errors.As(err, &badTarget) {
		return "bad_target"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var badStatus ErrBadStatus
	if errors.As(err, &badStatus) {
		return fmt.Sprintf("status_%d", badStatus.Status)
	}
	if isTimeout(err) {
		return "timeout"
	}
	if isConnection(err) {
		return "connection"
	}
	return "other"
}
