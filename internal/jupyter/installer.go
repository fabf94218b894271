package jupyter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/gokernel/internal/logging"
	"github.com/aretw0/gokernel/pkg/adapters/process"
)

// PathsProcess is the allow-list name under which `jupyter --paths` runs.
const PathsProcess = "jupyter-paths"

// RegisterPaths allow-lists `<jupyter> --paths` on r.
func RegisterPaths(r *process.Runner, jupyter string) {
	if jupyter == "" {
		jupyter = "jupyter"
	}
	r.Register(PathsProcess, jupyter, "--paths")
}

// KernelSpec is the kernel.json document Jupyter reads.
type KernelSpec struct {
	Argv        []string `json:"argv"`
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`
}

// Installer writes a kernelspec per language into every Jupyter data directory.
type Installer struct {
	runner     *process.Runner
	languages  []string
	executable string
	out        io.Writer
	logger     *slog.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithOutput sets where progress lines are written.
func WithOutput(w io.Writer) InstallerOption {
	return func(i *Installer) { i.out = w }
}

// WithExecutable sets the binary recorded in each kernelspec argv.
func WithExecutable(path string) InstallerOption {
	return func(i *Installer) { i.executable = path }
}

// WithLogger sets the installer logger.
func WithLogger(l *slog.Logger) InstallerOption {
	return func(i *Installer) { i.logger = l }
}

// NewInstaller creates an installer. runner must have PathsProcess registered.
func NewInstaller(runner *process.Runner, languages []string, opts ...InstallerOption) *Installer {
	i := &Installer{
		runner:     runner,
		languages:  languages,
		executable: "gokernel",
		out:        io.Discard,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// KernelName is the kernelspec directory name for language.
func KernelName(language string) string {
	return "gokernel-" + language
}

// Spec returns the kernelspec for language.
func (i *Installer) Spec(language string) KernelSpec {
	return KernelSpec{
		Argv:        []string{i.executable, "repl", "--json", "--no-banner", "--lang", language},
		DisplayName: fmt.Sprintf("gokernel (%s)", language),
		Language:    language,
	}
}

// Install discovers the data directories and writes the kernelspecs.
// Directories that do not exist are skipped. It returns the directories
// that received kernelspecs.
func (i *Installer) Install(ctx context.Context) ([]string, error) {
	res, err := i.runner.Run(ctx, PathsProcess, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query jupyter paths: %w", err)
	}

	dirs, err := DataPaths(res.Lines())
	if err != nil {
		return nil, err
	}

	installed := []string{}
	var errs []error
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			i.logger.Debug("Skipping missing data directory", "dir", dir)
			continue
		}
		if err := i.installInto(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		installed = append(installed, dir)
	}
	return installed, errors.Join(errs...)
}

func (i *Installer) installInto(dataDir string) error {
	for _, lang := range i.languages {
		kernelDir := filepath.Join(dataDir, "kernels", KernelName(lang))
		fmt.Fprintf(i.out, "Installing the %s kernel in directory: %s\n", lang, kernelDir)

		if err := os.MkdirAll(kernelDir, 0755); err != nil {
			return fmt.Errorf("failed to create kernel directory: %w", err)
		}
		data, err := json.MarshalIndent(i.Spec(lang), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal kernelspec: %w", err)
		}
		if err := os.WriteFile(filepath.Join(kernelDir, "kernel.json"), data, 0644); err != nil {
			return fmt.Errorf("failed to write kernelspec: %w", err)
		}

		fmt.Fprintf(i.out, "Finished installing the %s kernel in directory: %s\n", lang, kernelDir)
		i.logger.Info("Kernelspec installed", "kernel", KernelName(lang), "dir", kernelDir)
	}
	return nil
}
