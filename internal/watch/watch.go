// Package watch re-runs a callback when watched input files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 100 * time.Millisecond

type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
	log        *zap.Logger
	onChange   func(path string)
}

// New creates a watcher that calls onChange with the path of every changed
// file whose extension is one of extensions.
func New(log *zap.Logger, onChange func(string), extensions ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:    fw,
		extensions: extensions,
		debounce:   defaultDebounce,
		log:        log,
		onChange:   onChange,
	}, nil
}

// SetDebounce sets how long events on a file are collected before the
// callback runs.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Add watches every directory under each path. A file is watched through
// its parent directory.
func (w *Watcher) Add(paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", p, err)
		}
		if !info.IsDir() {
			if err := w.watcher.Add(filepath.Dir(p)); err != nil {
				return fmt.Errorf("error adding %s to watcher: %w", p, err)
			}
			continue
		}
		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return w.watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	return nil
}

// Run dispatches changes until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", zap.Error(err))
		case <-timer.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			clear(pending)
			slices.Sort(names)
			for _, name := range names {
				w.log.Debug("file changed", zap.String("file", name))
				w.onChange(name)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, filepath.Ext(event.Name))
}

func (w *Watcher) Close() error { return w.watcher.Close() }
