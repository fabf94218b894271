package directive

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consume(calls *[]Request) Handler {
	return func(_ context.Context, req Request) (domain.Submission, error) {
		*calls = append(*calls, req)
		return req.Remaining.Derive(""), nil
	}
}

func passThrough(calls *[]Request) Handler {
	return func(_ context.Context, req Request) (domain.Submission, error) {
		*calls = append(*calls, req)
		return req.Remaining, nil
	}
}

func TestRouter_IdentityWithoutDirectives(t *testing.T) {
	reg := NewRegistry()
	var calls []Request
	reg.MustRegister(Directive{Name: "%%html", Handler: consume(&calls)})
	router := NewRouter(reg)

	inputs := []string{
		"",
		"x = 1",
		"x = 1\ny = 2\n",
		"a\r\nb\r\n",
		"   \n\t\n",
		"html = 1 -- %%html is not at the start",
		"%html is not registered",
	}
	for _, code := range inputs {
		sub := domain.NewSubmission(code)
		out, err := router.Process(context.Background(), sub, nil)
		require.NoError(t, err)
		assert.Equal(t, sub, out, "input %q", code)
	}
	assert.Empty(t, calls)
}

func TestRouter_CellDirectiveConsumesRest(t *testing.T) {
	reg := NewRegistry()
	var calls []Request
	reg.MustRegister(Directive{Name: "%%html", Handler: consume(&calls)})

	sub := domain.Submission{ID: "id-1", ParentID: "parent", Code: "x = 1\n%%html\n<b>hi</b>\n<i>there</i>"}
	out, err := NewRouter(reg).Process(context.Background(), sub, nil)

	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "<b>hi</b>\n<i>there</i>", calls[0].Remaining.Code)
	assert.Equal(t, "id-1", calls[0].Remaining.ID)
	assert.Equal(t, "x = 1", out.Code)
	assert.Equal(t, "id-1", out.ID)
	assert.Equal(t, "parent", out.ParentID)
}

func TestRouter_ResidualIsRouted(t *testing.T) {
	reg := NewRegistry()
	var lineCalls, cellCalls []Request
	reg.MustRegister(Directive{Name: "%who", Handler: passThrough(&lineCalls)})
	reg.MustRegister(Directive{Name: "%%html", Handler: consume(&cellCalls)})

	out, err := NewRouter(reg).Process(context.Background(),
		domain.NewSubmission("%who\nprint(1)\n%%html\n<p/>"), nil)

	require.NoError(t, err)
	require.Len(t, lineCalls, 1)
	require.Len(t, cellCalls, 1)
	assert.Equal(t, "<p/>", cellCalls[0].Remaining.Code)
	assert.Equal(t, "print(1)", out.Code)
	assert.NotContains(t, out.Code, "%who", "consumed directive lines never reach the residual")
}

func TestRouter_FlagsAndArgs(t *testing.T) {
	reg := NewRegistry()
	var calls []Request
	reg.MustRegister(Directive{
		Name: "%%writefile",
		Flags: func() *pflag.FlagSet {
			fs := NewFlagSet("%%writefile")
			fs.BoolP("append", "a", false, "append")
			return fs
		},
		Handler: consume(&calls),
	})

	_, err := NewRouter(reg).Process(context.Background(),
		domain.NewSubmission("%%writefile -a out.txt\nhello"), nil)

	require.NoError(t, err)
	require.Len(t, calls, 1)
	appendFlag, err := calls[0].Flags.GetBool("append")
	require.NoError(t, err)
	assert.True(t, appendFlag)
	assert.Equal(t, []string{"out.txt"}, calls[0].Args)
}

func TestRouter_FlagErrorAbortsSubmission(t *testing.T) {
	reg := NewRegistry()
	var calls []Request
	reg.MustRegister(Directive{Name: "%%time", Handler: consume(&calls)})

	sub := domain.NewSubmission("%%time --bogus\n1")
	_, err := NewRouter(reg).Process(context.Background(), sub, nil)

	var spe *domain.SubmissionProcessingError
	require.True(t, errors.As(err, &spe))
	assert.Equal(t, sub.ID, spe.Submission.ID)
	assert.Empty(t, calls)
	assert.Equal(t, domain.ExitRouting, domain.ExitCode(err))
}

func TestRouter_HandlerErrorKeepsEarlierEffects(t *testing.T) {
	reg := NewRegistry()
	var first []Request
	boom := errors.New("boom")
	reg.MustRegister(Directive{Name: "%first", Handler: passThrough(&first)})
	reg.MustRegister(Directive{Name: "%fail", Handler: func(context.Context, Request) (domain.Submission, error) {
		return domain.Submission{}, boom
	}})

	_, err := NewRouter(reg).Process(context.Background(), domain.NewSubmission("%first\n%fail\nx"), nil)

	assert.ErrorIs(t, err, boom)
	assert.Len(t, first, 1)
}

func TestRouter_ManyDirectivesDoNotRecurse(t *testing.T) {
	reg := NewRegistry()
	var calls []Request
	reg.MustRegister(Directive{Name: "%noop", Handler: passThrough(&calls)})

	code := strings.Repeat("%noop\n", 10000) + "tail"
	out, err := NewRouter(reg).Process(context.Background(), domain.NewSubmission(code), nil)

	require.NoError(t, err)
	assert.Len(t, calls, 10000)
	assert.Equal(t, "tail", out.Code)
}

func TestRouter_Middleware(t *testing.T) {
	reg := NewRegistry()
	var calls []Request
	reg.MustRegister(Directive{Name: "%%html", Handler: func(_ context.Context, req Request) (domain.Submission, error) {
		calls = append(calls, req)
		return req.Remaining.Derive(""), req.Pipeline.Register(func(*pipeline.InvocationContext) error { return nil })
	}})

	cmd := domain.NewSubmitCode("%%html\n<b/>")
	pc := pipeline.NewContext(cmd)
	var seen domain.Command
	err := NewRouter(reg).Middleware()(context.Background(), cmd, pc,
		func(_ context.Context, c domain.Command, _ *pipeline.Context) error {
			seen = c
			return nil
		})

	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, 1, pc.Len())
	assert.Equal(t, "", seen.Submission().Code)
	assert.Equal(t, cmd.Sub.ID, seen.Submission().ID)
}
