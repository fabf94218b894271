package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	limit := DefaultMaxInputSize

	for name, size := range map[string]int{"under": limit - 1, "exact": limit} {
		t.Run(name, func(t *testing.T) {
			_, err := SanitizeInput(strings.Repeat("a", size))
			assert.NoError(t, err)
		})
	}

	_, err := SanitizeInput(strings.Repeat("a", limit+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestSanitizeInput_ControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain code", "print('hello')", "print('hello')"},
		{"multi-line cell", "for i = 1, 3 do\n\tprint(i)\r\nend", "for i = 1, 3 do\n\tprint(i)\r\nend"},
		{"ansi escape", "x = \x1b[31m1\x1b[0m", "x = [31m1[0m"},
		{"null byte", "a\x00b", "ab"},
		{"bell", "fmt.Println(1)\x07", "fmt.Println(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := SanitizeInput("x = 1234567")
	assert.ErrorIs(t, err, ErrInputTooLarge)
	_, err = SanitizeInput("x = 1")
	assert.NoError(t, err)
}

func TestSanitizeInputLimit_ExplicitWinsOverEnv(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := SanitizeInputLimit("local s = 'fifteen'", 20)
	assert.NoError(t, err)
	_, err = SanitizeInputLimit("123", 2)
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("s = \"\xbd\xb2\"")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
