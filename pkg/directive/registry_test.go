package directive

import (
	"context"
	"testing"

	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(_ context.Context, req Request) (domain.Submission, error) { return req.Remaining, nil }

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(Directive{Name: "%%time", Handler: noop}))
	require.NoError(t, reg.Register(Directive{Name: "%lsmagic", Handler: noop}))

	assert.ErrorIs(t, reg.Register(Directive{Name: "%%time", Handler: noop}), ErrDuplicateToken)
	assert.ErrorIs(t, reg.Register(Directive{Name: "", Handler: noop}), ErrEmptyToken)
	assert.ErrorIs(t, reg.Register(Directive{Name: "% bad", Handler: noop}), ErrEmptyToken)
	assert.ErrorIs(t, reg.Register(Directive{Name: "%nohandler"}), ErrNoHandler)

	d, ok := reg.Lookup("%%time")
	require.True(t, ok)
	assert.Equal(t, KindCell, d.Kind)

	d, ok = reg.Lookup("%lsmagic")
	require.True(t, ok)
	assert.Equal(t, KindLine, d.Kind)

	_, ok = reg.Lookup("%missing")
	assert.False(t, ok)
}

func TestRegistry_DirectivesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"%%writefile", "%lsmagic", "%%html", "%writefile"} {
		reg.MustRegister(Directive{Name: name, Handler: noop})
	}

	var names []string
	for _, d := range reg.Directives() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"%%html", "%%writefile", "%lsmagic", "%writefile"}, names)

	var cells []string
	for _, d := range reg.ByKind(KindCell) {
		cells = append(cells, d.Name)
	}
	assert.Equal(t, []string{"%%html", "%%writefile"}, cells)
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Directive{Name: "%x", Handler: noop})
	assert.Panics(t, func() { reg.MustRegister(Directive{Name: "%x", Handler: noop}) })
}
