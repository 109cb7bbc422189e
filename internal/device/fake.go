package device

import (
	"errors"
	"io"
	"sync"
)

// FakeBus is an in-memory Bus for tests. Sensor inputs are set with SetState,
// relay writes are recorded per slave and exposed through Writes.
type FakeBus struct {
	mu      sync.Mutex
	state   map[string]byte
	writes  map[string][]byte
	failing map[string]error
	opens   map[string]int
}

// NewFakeBus returns an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		state:   make(map[string]byte),
		writes:  make(map[string][]byte),
		failing: make(map[string]error),
		opens:   make(map[string]int),
	}
}

// SetState sets the byte a sensor board will report on its next read.
func (f *FakeBus) SetState(family byte, address uint64, v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[SlaveName(family, address)] = v
}

// Fail makes every open and I/O call for the slave return err. A nil err
// clears the failure.
func (f *FakeBus) Fail(family byte, address uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := SlaveName(family, address)
	if err == nil {
		delete(f.failing, name)
		return
	}
	f.failing[name] = err
}

// Writes returns every byte written to the slave, oldest first.
func (f *FakeBus) Writes(family byte, address uint64) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.writes[SlaveName(family, address)]...)
}

// Opens returns how many times the slave resource was opened.
func (f *FakeBus) Opens(family byte, address uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[SlaveName(family, address)]
}

// OpenState implements Bus.
func (f *FakeBus) OpenState(family byte, address uint64) (Resource, error) {
	return f.open(SlaveName(family, address))
}

// OpenOutput implements Bus.
func (f *FakeBus) OpenOutput(family byte, address uint64) (Resource, error) {
	return f.open(SlaveName(family, address))
}

func (f *FakeBus) open(name string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[name]++
	if err := f.failing[name]; err != nil {
		return nil, err
	}
	return &fakeResource{bus: f, name: name}, nil
}

type fakeResource struct {
	bus    *FakeBus
	name   string
	closed bool
}

var errClosed = errors.New("fake resource closed")

func (r *fakeResource) Read(p []byte) (int, error) {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if r.closed {
		return 0, errClosed
	}
	if err := r.bus.failing[r.name]; err != nil {
		return 0, err
	}
	v, ok := r.bus.state[r.name]
	if !ok {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = v
	return 1, nil
}

func (r *fakeResource) Write(p []byte) (int, error) {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if r.closed {
		return 0, errClosed
	}
	if err := r.bus.failing[r.name]; err != nil {
		return 0, err
	}
	r.bus.writes[r.name] = append(r.bus.writes[r.name], p...)
	return len(p), nil
}

func (r *fakeResource) Seek(int64, int) (int64, error) { return 0, nil }

func (r *fakeResource) Close() error {
	r.closed = true
	return nil
}
