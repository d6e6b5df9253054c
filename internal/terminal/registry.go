package terminal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/srbio/internal/common"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Dialer)
)

// Register makes a driver available by name. It panics if Register is
// called twice with the same name or with a nil dialer.
func Register(name string, d Dialer) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("terminal: Register dialer is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("terminal: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Open looks up a registered driver.
func Open(name string) (Dialer, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown terminal driver %q (forgotten import?): %w", name, common.ErrorInvalidArgument)
	}
	return d, nil
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	out := make([]string, 0, len(drivers))
	for name := range drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
