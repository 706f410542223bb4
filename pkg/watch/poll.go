package watch

import (
	"io/fs"
	"path/filepath"
	"time"
)

type fileStamp struct {
	mod  time.Time
	size int64
}

// pollBackend rescans the tree every PollInterval and diffs modification
// times and sizes against the previous scan.
type pollBackend struct {
	w     *Watcher
	stamp map[string]fileStamp
	stop  chan struct{}
}

func newPollBackend(w *Watcher) *pollBackend {
	b := &pollBackend{w: w, stop: make(chan struct{})}
	b.stamp = b.scan()
	return b
}

func (b *pollBackend) run(emit func(path string, op Op)) {
	ticker := time.NewTicker(b.w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.check(emit)
		}
	}
}

func (b *pollBackend) check(emit func(path string, op Op)) {
	next := b.scan()
	for p, st := range next {
		prev, ok := b.stamp[p]
		switch {
		case !ok:
			emit(p, Create)
		case !st.mod.Equal(prev.mod) || st.size != prev.size:
			emit(p, Write)
		}
	}
	for p := range b.stamp {
		if _, ok := next[p]; !ok {
			emit(p, Remove)
		}
	}
	b.stamp = next
}

func (b *pollBackend) scan() map[string]fileStamp {
	out := make(map[string]fileStamp)
	root := b.w.root
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		if b.w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !b.w.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[path] = fileStamp{mod: info.ModTime(), size: info.Size()}
		return nil
	})
	return out
}

func (b *pollBackend) close() error {
	close(b.stop)
	return nil
}
