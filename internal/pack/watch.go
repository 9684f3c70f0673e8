package pack

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reports when the audio source tree settles after changes.
// Bursts of events (an upload writing many files) collapse into one signal.
// fsnotify watches single directories, so every subdirectory is added, and
// directories created later are added as they appear.
type Watcher struct {
	Dir      string
	Debounce time.Duration

	fw *fsnotify.Watcher
}

func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addTree(fw, dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{Dir: dir, Debounce: DefaultDebounce, fw: fw}, nil
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A subdirectory removed mid-walk is not an error for the watcher.
			if path != root && os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fw.Add(path)
	})
}

// Run calls onChange once per settled burst until ctx is done. It closes the
// underlying watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fw.Close()

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	// fire is nil while nothing is pending; each event pushes the deadline out.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// The Create already schedules a signal, so files written
					// before this Add are still covered by it.
					_ = addTree(w.fw, ev.Name)
				}
			}
			fire = time.After(debounce)
		case <-fire:
			fire = nil
			onChange()
		case _, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			// Watch errors are non-fatal.
		}
	}
}
