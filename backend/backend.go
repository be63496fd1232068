package backend

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// Backend names.
const (
	Native   = "native"
	Web      = "web"
	Software = "software"
)

// priority is the order Open tries backends in when no name is given.
var priority = []string{Native, Web, Software}

// ErrNotAvailable is returned when no backend with the requested name is
// registered, or none is registered at all.
var ErrNotAvailable = errors.New("backend: not available")

// Backend opens devices of one implementation.
type Backend interface {
	// Name returns the registered name.
	Name() string

	// Open creates a headless device. Surfaces are created from the
	// concrete device type.
	Open() (render.Device, error)
}

var registry = gpucontext.NewRegistry[Backend](gpucontext.WithPriority(priority...))

// Register makes a backend available under name. A later registration
// with the same name replaces the earlier one.
func Register(name string, factory func() Backend) {
	registry.Register(name, factory)
}

// Unregister removes a backend. Used by tests.
func Unregister(name string) {
	registry.Unregister(name)
}

// Available returns the registered backend names.
func Available() []string {
	return registry.Available()
}

// Get returns the backend registered as name. An empty name selects the
// highest-priority backend.
func Get(name string) (Backend, error) {
	var b Backend
	if name == "" {
		b = registry.Best()
	} else {
		b = registry.Get(name)
	}
	if b == nil {
		if name == "" {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("%w: %q", ErrNotAvailable, name)
	}
	return b, nil
}

// Open opens a device from the backend registered as name, or the best
// one when name is empty. If the best backend fails to open, the next one
// in priority order is tried.
func Open(name string) (render.Device, error) {
	if name != "" {
		b, err := Get(name)
		if err != nil {
			return nil, err
		}
		return b.Open()
	}

	var errs []error
	for _, n := range candidates() {
		b := registry.Get(n)
		if b == nil {
			continue
		}
		dev, err := b.Open()
		if err == nil {
			logging.Logger().Info("backend: device opened", "backend", n)
			return dev, nil
		}
		logging.Logger().Warn("backend: open failed, trying next", "backend", n, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", n, err))
	}
	if len(errs) == 0 {
		return nil, ErrNotAvailable
	}
	return nil, errors.Join(errs...)
}

// candidates returns registered names in priority order, unknown names
// last.
func candidates() []string {
	out := make([]string, 0, registry.Count())
	seen := make(map[string]bool)
	for _, n := range priority {
		if registry.Has(n) {
			out = append(out, n)
			seen[n] = true
		}
	}
	rest := registry.Available()
	slices.Sort(rest)
	for _, n := range rest {
		if !seen[n] {
			out = append(out, n)
		}
	}
	return out
}
