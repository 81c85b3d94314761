// Package security provides log redaction, request rate limiting and input
// validation for reqsync.
package security

import (
	"io"
	"regexp"
	"strings"
	"sync"
)

// Common patterns for sensitive data
var (
	// GitHub tokens: classic, OAuth, user-to-server, server-to-server, refresh and fine-grained
	githubTokenPattern = regexp.MustCompile(`(gh[pousr]_[A-Za-z0-9]{36,255}|github_pat_[A-Za-z0-9_]{22,255})`)

	// Authorization header using the GitHub "token" scheme
	tokenAuthPattern = regexp.MustCompile(`(?i)(authorization:[[:space:]]*)token[[:space:]]+[^[:space:]"]+`)

	// Bearer tokens
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer[[:space:]]+([a-zA-Z0-9_\-\.]+)`)

	// Secrets assigned in config or query strings
	secretAssignmentPattern = regexp.MustCompile(`(?i)(api[_-]?key|client[_-]?secret|webhook[_-]?secret|access[_-]?token)[[:space:]]*[:=][[:space:]]*['"` + "`" + `]?([a-zA-Z0-9_\-]{16,})`)

	// Private keys (GitHub App keys are PEM encoded RSA keys)
	privateKeyPattern = regexp.MustCompile(`(?s)-----BEGIN[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----.*?-----END[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----`)

	// Passwords in URLs
	urlPasswordPattern = regexp.MustCompile(`(?i)(https?)://[^:/@\s]+:([^@\s]+)@`)

	// JSON Web Tokens
	jwtPattern = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
)

// minSecretLength is the shortest literal secret AddSecret will register.
const minSecretLength = 8

// LogSanitizer masks credentials in log output. It is safe for concurrent use.
type LogSanitizer struct {
	mu             sync.RWMutex
	customPatterns []*regexp.Regexp
}

// NewLogSanitizer creates a new log sanitizer
func NewLogSanitizer() *LogSanitizer {
	return &LogSanitizer{
		customPatterns: make([]*regexp.Regexp, 0),
	}
}

// AddCustomPattern adds a custom pattern to sanitize
func (ls *LogSanitizer) AddCustomPattern(pattern *regexp.Regexp) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.customPatterns = append(ls.customPatterns, pattern)
}

// AddSecret registers a literal value, such as a configured token, that must
// never appear in output. Values shorter than eight characters are ignored.
func (ls *LogSanitizer) AddSecret(secret string) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLength {
		return
	}
	ls.AddCustomPattern(regexp.MustCompile(regexp.QuoteMeta(secret)))
}

// Sanitize removes or masks sensitive information from log messages
func (ls *LogSanitizer) Sanitize(message string) string {
	// Literal secrets first so a known token is caught even in an unusual format
	ls.mu.RLock()
	for _, pattern := range ls.customPatterns {
		message = pattern.ReplaceAllString(message, "[REDACTED]")
	}
	ls.mu.RUnlock()

	message = privateKeyPattern.ReplaceAllString(message, "[REDACTED-PRIVATE-KEY]")
	message = githubTokenPattern.ReplaceAllString(message, "[REDACTED-GITHUB-TOKEN]")
	message = tokenAuthPattern.ReplaceAllString(message, "${1}token [REDACTED]")
	message = jwtPattern.ReplaceAllString(message, "[REDACTED-JWT]")
	message = bearerTokenPattern.ReplaceAllString(message, "Bearer [REDACTED]")
	message = secretAssignmentPattern.ReplaceAllString(message, "${1}=[REDACTED]")
	message = urlPasswordPattern.ReplaceAllString(message, "${1}://[REDACTED]@")

	return message
}

// SanitizeError sanitizes error messages that might contain sensitive info
func (ls *LogSanitizer) SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return ls.Sanitize(err.Error())
}

// SanitizeMap sanitizes all values in a map (useful for labels/metadata)
func (ls *LogSanitizer) SanitizeMap(m map[string]string) map[string]string {
	sanitized := make(map[string]string, len(m))
	for k, v := range m {
		value := ls.Sanitize(v)
		if isSensitiveKey(k) {
			value = "[REDACTED]"
		}
		sanitized[ls.Sanitize(k)] = value
	}
	return sanitized
}

// isSensitiveKey checks if a key name suggests sensitive content
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	sensitiveKeywords := []string{
		"password", "passwd", "secret",
		"token", "auth", "credential",
		"private", "api_key", "apikey", "bearer",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}

// Writer wraps w so every write is sanitized before it reaches w.
// Each Write call is sanitized independently, which matches writers that
// receive one complete log line per call.
func (ls *LogSanitizer) Writer(w io.Writer) io.Writer {
	return &sanitizingWriter{ls: ls, out: w}
}

type sanitizingWriter struct {
	ls  *LogSanitizer
	out io.Writer
}

func (w *sanitizingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, w.ls.Sanitize(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
