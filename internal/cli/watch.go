package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of events a single save produces.
const debounceDelay = 100 * time.Millisecond

// RunWatch runs the file, then re-runs it on a fresh kernel after each change.
// Failures are reported and watching continues.
func RunWatch(ctx context.Context, env *Env, opts RunOptions) error {
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return err
	}
	opts.Path = path

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often save by rename, so the directory is watched, not the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	env.Logger.Info("Starting watcher", "path", path)

	run := func() {
		err := runOnce(ctx, env, opts)
		if err != nil {
			printSystemMessage(opts.Stdout, "Run failed: %v", err)
		}
		printSystemMessage(opts.Stdout, "Waiting for changes...")
		if opts.afterRun != nil {
			opts.afterRun(err)
		}
	}
	run()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			env.Logger.Info("Stopping watcher")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			debounce = time.After(debounceDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			env.Logger.Warn("Watcher error", "err", err)
		case <-debounce:
			debounce = nil
			printSystemMessage(opts.Stdout, "Change detected in '%s'.", filepath.Base(path))
			run()
		}
	}
}
