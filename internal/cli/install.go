package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/gokernel"
	"github.com/aretw0/gokernel/internal/jupyter"
	"github.com/aretw0/gokernel/pkg/adapters/process"
)

// Install writes a Jupyter kernelspec for every built-in language.
// jupyterBin names the jupyter executable; empty means "jupyter" on PATH.
func Install(ctx context.Context, env *Env, jupyterBin string, out io.Writer) error {
	exe, err := os.Executable()
	if err != nil {
		exe = "gokernel"
	}

	runner := process.NewRunner()
	jupyter.RegisterPaths(runner, jupyterBin)
	installer := jupyter.NewInstaller(runner, gokernel.Languages(),
		jupyter.WithOutput(out),
		jupyter.WithExecutable(exe),
		jupyter.WithLogger(env.Logger),
	)

	dirs, err := installer.Install(ctx)
	if len(dirs) == 0 && err == nil {
		printSystemMessage(out, "No Jupyter data directory exists yet; nothing installed.")
	}
	return err
}
