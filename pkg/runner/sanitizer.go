package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 64KB, enough for a pasted cell.
	DefaultMaxInputSize = 65536
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "GOKERNEL_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput cleans user input by enforcing the size limit from
// GOKERNEL_MAX_INPUT_SIZE, validating UTF-8, and stripping dangerous control characters.
func SanitizeInput(input string) (string, error) {
	return SanitizeInputLimit(input, 0)
}

// SanitizeInputLimit is SanitizeInput with an explicit limit.
// A limit of zero or less falls back to the environment or the default.
func SanitizeInputLimit(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = getMaxInputSize()
	}
	if len(input) > limit {
		// Rejected rather than truncated: a truncated unit would execute something else.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Newline, tab and carriage return survive. ESC, NULL, BEL and friends do not.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
