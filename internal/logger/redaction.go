package logger

import (
	"io"
	"regexp"
)

// defaultPatterns covers the secrets this process actually handles: the
// provider credentials held by auth profiles, the gateway shared secret,
// and the config fields that carry either when a config dump lands in a
// log line.
var defaultPatterns = []string{
	// Anthropic first: the sk-ant- prefix must be tried before the
	// generic OpenAI sk- form.
	`sk-ant-[a-zA-Z0-9_-]{20,}`,
	`sk-[a-zA-Z0-9_-]{20,}`,

	// Gateway auth: the shared-secret header and bearer tokens.
	`X-Mate-Secret["\s:=]+[^\s"]+`,
	`Bearer\s+[a-zA-Z0-9._-]+`,

	// Credential-bearing config fields.
	`"api_key"\s*:\s*"[^"]*"`,
	`"shared_secret"\s*:\s*"[^"]*"`,
	`password["\s:=]+[^\s"]+`,
	`pwd["\s:=]+[^\s"]+`,
	`secret["\s:=]+[^\s"]+`,
	`token["\s:=]+[a-zA-Z0-9._-]{20,}`,
}

// Redactor masks sensitive values in log output.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor with the default pattern set.
func NewRedactor() *Redactor {
	patterns := make([]*regexp.Regexp, 0, len(defaultPatterns))
	for _, p := range defaultPatterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	return &Redactor{patterns: patterns}
}

// AddPattern adds a custom redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks every pattern match in s.
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// Wrap returns a writer that redacts everything written through it.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

func (w *redactingWriter) Write(p []byte) (n int, err error) {
	redacted := w.redactor.Redact(string(p))
	return w.writer.Write([]byte(redacted))
}
