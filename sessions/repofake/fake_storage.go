package sessionrepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/sessions"
)

var _ sessions.Storage = (*FakeStorage)(nil)

// Operation names accepted by FailOn.
const (
	OpGet         = "Get"
	OpMultiGet    = "MultiGet"
	OpMultiSet    = "MultiSet"
	OpMultiRemove = "MultiRemove"
)

// FakeStorage is an in-memory Storage with fault injection.
type FakeStorage struct {
	values map[string]string
	faults map[string]error
	calls  map[string]int
	holds  map[string]*hold
	lock   sync.RWMutex
}

type hold struct {
	entered chan struct{}
	release chan struct{}
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		values: make(map[string]string),
		faults: make(map[string]error),
		calls:  make(map[string]int),
		holds:  make(map[string]*hold),
	}
}

// Hold pauses the next call of op before it touches the values. entered is closed
// once that call is waiting; release lets it continue.
func (fs *FakeStorage) Hold(op string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	fs.lock.Lock()
	fs.holds[op] = h
	fs.lock.Unlock()

	var once sync.Once
	return h.entered, func() {
		once.Do(func() { close(h.release) })
	}
}

func (fs *FakeStorage) wait(op string) {
	fs.lock.Lock()
	h := fs.holds[op]
	delete(fs.holds, op)
	fs.lock.Unlock()

	if h != nil {
		close(h.entered)
		<-h.release
	}
}

// Seed writes values directly, bypassing fault injection.
func (fs *FakeStorage) Seed(values map[string]string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	for k, v := range values {
		fs.values[k] = v
	}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (fs *FakeStorage) FailOn(op string, err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err == nil {
		delete(fs.faults, op)
		return
	}
	fs.faults[op] = err
}

// Snapshot returns a copy of the stored values.
func (fs *FakeStorage) Snapshot() map[string]string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	out := make(map[string]string, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out
}

// Calls returns how many times op was invoked.
func (fs *FakeStorage) Calls(op string) int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.calls[op]
}

func (fs *FakeStorage) begin(op string) error {
	fs.calls[op]++
	if err, ok := fs.faults[op]; ok {
		return errors.Wrapf(err, "FakeStorage.%s", op)
	}
	return nil
}

func (fs *FakeStorage) Get(_ context.Context, key string) (string, bool, error) {
	fs.wait(OpGet)
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.begin(OpGet); err != nil {
		return "", false, err
	}
	v, ok := fs.values[key]
	return v, ok, nil
}

func (fs *FakeStorage) MultiGet(_ context.Context, keys ...string) (map[string]string, error) {
	fs.wait(OpMultiGet)
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.begin(OpMultiGet); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := fs.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// MultiSet is all or nothing: an injected fault leaves the stored values untouched.
func (fs *FakeStorage) MultiSet(_ context.Context, values map[string]string) error {
	fs.wait(OpMultiSet)
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.begin(OpMultiSet); err != nil {
		return err
	}
	for k, v := range values {
		fs.values[k] = v
	}
	return nil
}

func (fs *FakeStorage) MultiRemove(_ context.Context, keys ...string) error {
	fs.wait(OpMultiRemove)
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := fs.begin(OpMultiRemove); err != nil {
		return err
	}
	for _, k := range keys {
		delete(fs.values, k)
	}
	return nil
}
