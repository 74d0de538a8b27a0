package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"axquery/internal/axnode"
	"axquery/internal/logging"
)

// FixtureRoot serves an in-memory tree loaded from disk. Reload swaps the tree;
// callers must run it on the goroutine that runs commands.
type FixtureRoot struct {
	path       string
	tree       *axnode.Tree
	generation int
}

// NewFixtureRoot loads path with axnode.Open.
func NewFixtureRoot(path string) (*FixtureRoot, error) {
	tree, err := axnode.Open(path)
	if err != nil {
		return nil, err
	}
	return &FixtureRoot{path: path, tree: tree, generation: 1}, nil
}

// Root implements command.RootProvider.
func (f *FixtureRoot) Root(ctx context.Context) (axnode.Node, error) {
	return f.tree.Root(), nil
}

// Tree returns the current tree.
func (f *FixtureRoot) Tree() *axnode.Tree {
	return f.tree
}

// Generation increments on every successful reload.
func (f *FixtureRoot) Generation() int {
	return f.generation
}

// Path returns the fixture file.
func (f *FixtureRoot) Path() string {
	return f.path
}

// Reload re-reads the file. On error the previous tree stays in place.
func (f *FixtureRoot) Reload() error {
	tree, err := axnode.Open(f.path)
	if err != nil {
		return err
	}
	f.tree = tree
	f.generation++
	logging.Fixture("reloaded %s (generation %d, %d nodes)", f.path, f.generation, tree.Len())
	return nil
}

// FixtureWatcher calls onChange once a fixture file has been quiet for the
// debounce interval after a create, write or rename.
type FixtureWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()
}

// NewFixtureWatcher watches the directory containing path, so editors that
// replace the file by rename are still seen.
func NewFixtureWatcher(path string, debounce time.Duration, onChange func()) (*FixtureWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("watch fixture: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &FixtureWatcher{watcher: w, path: abs, debounce: debounce, onChange: onChange}, nil
}

// Run delivers debounced change notifications until ctx is done, then closes
// the underlying watcher.
func (fw *FixtureWatcher) Run(ctx context.Context) error {
	defer fw.watcher.Close()
	logging.Fixture("watching %s (debounce %v)", fw.path, fw.debounce)

	tick := fw.debounce / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logging.Get(logging.CategoryFixture).Debug("%s: %s", event.Op, event.Name)
			pending = time.Now()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			logging.FixtureWarn("watcher error: %v", err)

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= fw.debounce {
				pending = time.Time{}
				fw.onChange()
			}
		}
	}
}
