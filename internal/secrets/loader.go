// Package secrets resolves API keys for the optional backends (generation,
// embeddings, scraping).
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no source holds a value.
var ErrNotConfigured = errors.New("not configured")

// Source lists the places a key may come from. File wins over Value.
type Source struct {
	Name  string
	Value string
	File  string
}

func (s Source) label() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "secret"
}

// Load returns the trimmed key. A file that is set but unreadable or blank
// is an error; nothing set at all wraps ErrNotConfigured.
func Load(src Source) (string, error) {
	if path := strings.TrimSpace(src.File); path != "" {
		return fromFile(src.label(), path)
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s is %w", src.label(), ErrNotConfigured)
}

// LoadOptional is Load for keys whose absence only disables a feature.
func LoadOptional(src Source) (string, error) {
	secret, err := Load(src)
	if errors.Is(err, ErrNotConfigured) {
		return "", nil
	}
	return secret, err
}

func fromFile(label, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s from file %q: %w", label, path, err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s file %q is empty", label, path)
	}
	return secret, nil
}

// Mask hides a key for logs and config dumps. Long keys keep their last four
// characters so operators can tell keys apart.
func Mask(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return ""
	case len(secret) < 12:
		return "***"
	default:
		return "***" + secret[len(secret)-4:]
	}
}
