package router

import (
	"sync"
	"sync/atomic"
)

// Matcher owns the current route table for a pages root and replaces it
// wholesale on Rescan. A match that loaded the previous table keeps using
// it until it returns.
type Matcher struct {
	rootDir string
	opts    BuildOptions

	table atomic.Pointer[Table]

	// rescanMu serializes rebuilds; matches never take it.
	rescanMu sync.Mutex
}

// NewMatcher scans rootDir and returns a matcher serving the result.
func NewMatcher(rootDir string, opts BuildOptions) (*Matcher, error) {
	m := &Matcher{rootDir: rootDir, opts: opts.withDefaults()}
	t, err := Build(rootDir, m.opts)
	if err != nil {
		return nil, err
	}
	m.table.Store(t)
	return m, nil
}

// Table returns the current snapshot.
func (m *Matcher) Table() *Table {
	return m.table.Load()
}

// Match resolves path against the current snapshot.
func (m *Matcher) Match(path string) (Match, bool) {
	return m.table.Load().Match(path)
}

// Rescan rebuilds the table and swaps it in. On error the previous table
// stays in service and the error is returned.
func (m *Matcher) Rescan() (*Table, error) {
	m.rescanMu.Lock()
	defer m.rescanMu.Unlock()

	t, err := Build(m.rootDir, m.opts)
	if err != nil {
		return nil, err
	}
	m.table.Store(t)
	m.opts.Logger.Debug("routes rescanned", "root", m.rootDir, "routes", t.Len())
	return t, nil
}
