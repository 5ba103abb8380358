package diskspace

import (
	"os"
	"sync"
)

// Fake is a deterministic Probe for tests: Usage returns a caller-set
// value regardless of path; Size falls back to os.Stat unless a fixed
// size map entry exists.
type Fake struct {
	mu    sync.Mutex
	usage Usage
	sizes map[string]int64
}

func NewFake(usage Usage) *Fake {
	return &Fake{usage: usage, sizes: make(map[string]int64)}
}

func (f *Fake) SetUsage(u Usage) {
	f.mu.Lock()
	f.usage = u
	f.mu.Unlock()
}

func (f *Fake) SetSize(path string, size int64) {
	f.mu.Lock()
	f.sizes[path] = size
	f.mu.Unlock()
}

func (f *Fake) Usage(string) (Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, nil
}

func (f *Fake) Size(path string) (int64, error) {
	f.mu.Lock()
	if sz, ok := f.sizes[path]; ok {
		f.mu.Unlock()
		return sz, nil
	}
	f.mu.Unlock()
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
