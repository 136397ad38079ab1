package adapter

import (
	"fmt"
	"sync"
)

// Factory constructs an Adapter instance. Registered once per name, usually
// from an adapter package's init().
type Factory func() Adapter

var (
	mu         sync.Mutex
	factories  = map[string]Factory{}
	loadedOnce sync.Map // name -> Adapter; the process-wide adapter cache
)

// Register adds a named factory to the process-wide registry.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Get returns the adapter for name, constructing and caching it on first
// use. The cache is never evicted for the life of the process and is safe
// for concurrent read; writes happen only during first load.
func Get(name string) (Adapter, error) {
	if v, ok := loadedOnce.Load(name); ok {
		return v.(Adapter), nil
	}

	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("adapter: unknown adapter %q", name)
	}

	a := f()
	actual, _ := loadedOnce.LoadOrStore(name, a)
	return actual.(Adapter), nil
}

// Reset clears the registry and cache. Test-only: production code never
// evicts.
func Reset() {
	mu.Lock()
	factories = map[string]Factory{}
	mu.Unlock()
	loadedOnce = sync.Map{}
}
