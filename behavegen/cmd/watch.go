package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toejough/behave/behavegen/run"
)

const watchLongDescription = `Generate once, then regenerate whenever a template or Go file under the
directories changes. Generation errors are logged and watching continues.

` + pathPatternsHelp

func (a *app) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Regenerate on every change",
		Long:  watchLongDescription,
		RunE:  a.watch,
	}

	cmd.Flags().Int("debounce-ms", defaultWatchDebounce, "quiet period before regenerating, in milliseconds")
	bindFlagToConfig(a.v, cmd.Flags().Lookup("debounce-ms"), watchDebounceKey)

	return cmd
}

func (a *app) watch(cmd *cobra.Command, args []string) error {
	log, err := a.logger(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	dirs, err := packageDirs(args)
	if err != nil {
		return err
	}

	cfg := runConfig(a.v)
	cfg.Check = false

	regenerate := func(ctx context.Context) {
		err := run.Run(ctx, dirs, cfg, run.OSFileSystem{}, log, cmd.OutOrStdout())
		if err != nil {
			log.Error("generation failed", zap.Error(err))
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		err = addWatchRecursive(watcher, dir)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	regenerate(cmd.Context())

	debounce := time.Duration(a.v.GetInt(watchDebounceKey)) * time.Millisecond
	log.Info("watching", zap.Strings("dirs", dirs), zap.Duration("debounce", debounce))

	return watchLoop(cmd.Context(), watcher, debounce, cfg, log, regenerate)
}

// watchLoop calls regenerate once no relevant event has arrived for debounce,
// until ctx is done or the watcher closes.
func watchLoop(
	ctx context.Context,
	watcher *fsnotify.Watcher,
	debounce time.Duration,
	cfg run.Config,
	log *zap.Logger,
	regenerate func(context.Context),
) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerC = timer.C

			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		timer.Reset(debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return nil
		case <-timerC:
			timerC = nil

			regenerate(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Warn("watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					addErr := addWatchRecursive(watcher, event.Name)
					if addErr != nil {
						log.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(addErr))
					}
				}
			}

			if triggersGeneration(event, cfg) {
				log.Debug("change", zap.String("path", event.Name), zap.Stringer("op", event.Op))
				resetTimer()
			}
		}
	}
}

// triggersGeneration reports whether an event touches an input: a template or
// a Go file that behavegen did not write itself.
func triggersGeneration(event fsnotify.Event, cfg run.Config) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "generated_") || base == cfg.MocksFile {
		return false
	}

	return strings.HasSuffix(base, cfg.TemplateExt) || strings.HasSuffix(base, ".go")
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		name := entry.Name()
		if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}
