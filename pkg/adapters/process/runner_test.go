package process

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}

	runner := NewRunner(WithBaseDir(t.TempDir()))
	runner.Register("paths", "sh", "-c", "printf 'config:\\n    /etc\\ndata:\\n    /usr/share\\n'")
	runner.Register("echo_env", "sh", "-c", "echo $GOKERNEL_ARG_MSG $GOKERNEL_ARG_LIST")
	runner.Register("fail", "sh", "-c", "echo nope >&2; exit 3")

	t.Run("Executes Registered Command", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "paths", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"config:", "    /etc", "data:", "    /usr/share"}, res.Lines())
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Run(context.Background(), "hacker_script", nil)
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "echo_env", map[string]any{
			"msg":  "SecretMessage",
			"list": []int{1, 2},
		})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, "SecretMessage [1,2]")
	})

	t.Run("Reports Exit Code And Stderr", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
		assert.Equal(t, 3, res.ExitCode)
	})

	t.Run("Lists Registered Names", func(t *testing.T) {
		assert.Equal(t, []string{"echo_env", "fail", "paths"}, runner.Registered())
	})
}

func TestResult_LinesEmpty(t *testing.T) {
	assert.Nil(t, Result{}.Lines())
	assert.Equal(t, []string{"a", "b"}, Result{Stdout: "a\r\nb\r\n"}.Lines())
}
