package watch

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type notifyBackend struct {
	w  *Watcher
	fw *fsnotify.Watcher
}

func newNotifyBackend(w *Watcher) (*notifyBackend, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	b := &notifyBackend{w: w, fw: fw}
	if err := b.add(w.root, nil); err != nil {
		fw.Close()
		return nil, err
	}
	return b, nil
}

// add watches dir and, when recursive, every directory below it. Files
// found on the way are passed to found, which covers files written into a
// new directory before its watch was registered.
func (b *notifyBackend) add(dir string, found func(path string)) error {
	if !b.w.opts.Recursive {
		return b.fw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.w.logger.Warn("watch walk failed", "path", path, "error", err)
			return nil
		}
		if path != dir && b.w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if found != nil {
				found(path)
			}
			return nil
		}
		if err := b.fw.Add(path); err != nil {
			b.w.logger.Warn("watch add failed", "path", path, "error", err)
		}
		return nil
	})
}

func (b *notifyBackend) run(emit func(path string, op Op)) {
	for {
		select {
		case ev, ok := <-b.fw.Events:
			if !ok {
				return
			}
			op := translate(ev.Op)
			if op == 0 {
				continue
			}
			if b.w.opts.Recursive && ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if b.w.ignored(ev.Name) {
					continue
				}
				_ = b.add(ev.Name, func(path string) { emit(path, Create) })
			}
			emit(ev.Name, op)
		case err, ok := <-b.fw.Errors:
			if !ok {
				return
			}
			b.w.logger.Warn("watch error", "error", err)
		}
	}
}

func (b *notifyBackend) close() error {
	return b.fw.Close()
}

func translate(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= Create
	}
	if op.Has(fsnotify.Write) {
		out |= Write
	}
	if op.Has(fsnotify.Remove) {
		out |= Remove
	}
	if op.Has(fsnotify.Rename) {
		out |= Rename
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
