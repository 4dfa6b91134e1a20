package clip

import "sync"

// Memory is an in-process Backend. Set simulates another application
// copying; WriteImage replaces the contents with a PNG item the way the
// platform backends do. Every change signals Watch.
type Memory struct {
	mu      sync.Mutex
	items   []Item
	writes  []Image
	readErr error
	watchCh chan struct{}
}

func NewMemory() *Memory {
	return &Memory{watchCh: make(chan struct{}, 1)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Read() ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]Item(nil), m.items...), nil
}

func (m *Memory) WriteImage(img Image) error {
	m.mu.Lock()
	m.items = []Item{{MIME: MIMEPNG, Data: img.PNG}}
	m.writes = append(m.writes, img)
	m.mu.Unlock()
	notify(m.watchCh)
	return nil
}

// Set replaces the contents and signals a change.
func (m *Memory) Set(items ...Item) {
	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
	notify(m.watchCh)
}

// SetText is Set with a single text item.
func (m *Memory) SetText(s string) { m.Set(Item{MIME: MIMEText, Data: []byte(s)}) }

// SetReadError makes subsequent reads fail with err.
func (m *Memory) SetReadError(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// Writes returns every image written so far.
func (m *Memory) Writes() []Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Image(nil), m.writes...)
}

func (m *Memory) Watch() <-chan struct{} { return m.watchCh }
func (m *Memory) Close()                 {}
