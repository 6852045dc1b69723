package us

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// progressTracker remembers, per symbol, the last date fetched into the
// store. It is persisted as "SYMBOL YYYY-MM-DD" lines in a .fetched file so
// that an interrupted or repeated fetch resumes instead of starting over.
type progressTracker struct {
	mu      sync.Mutex
	path    string
	fetched map[string]string
}

// newProgressTracker loads the .fetched file in dir, creating dir if needed.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}
	pt := &progressTracker{
		path:    filepath.Join(dir, ".fetched"),
		fetched: make(map[string]string),
	}

	f, err := os.Open(pt.path)
	if os.IsNotExist(err) {
		return pt, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pt.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 {
			pt.fetched[fields[0]] = fields[1]
		}
	}
	return pt, sc.Err()
}

// LastFetched returns the last date stored for symbol, or "".
func (p *progressTracker) LastFetched(symbol string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetched[symbol]
}

// MarkFetched records date for symbols and rewrites the file.
func (p *progressTracker) MarkFetched(symbols []string, date string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sym := range symbols {
		if date > p.fetched[sym] {
			p.fetched[sym] = date
		}
	}

	syms := make([]string, 0, len(p.fetched))
	for sym := range p.fetched {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	var b strings.Builder
	for _, sym := range syms {
		fmt.Fprintf(&b, "%s %s\n", sym, p.fetched[sym])
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return os.Rename(tmp, p.path)
}
