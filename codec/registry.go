package codec

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/types"
)

// Options carries decode hints passed alongside the payload bytes.
type Options struct {
	// Endian selects byte order for multi-byte numeric codecs:
	// "big" (default) or "little".
	Endian string
}

// DecodeFunc converts extracted payload bytes into a typed value.
type DecodeFunc func(data []byte, opts Options) (types.Value, error)

// Registry holds named codecs. Safe for concurrent use; registration
// under an existing name replaces the previous codec.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]DecodeFunc
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]DecodeFunc),
		logger: slog.Default().With("component", "codec"),
	}
}

// NewBuiltinRegistry creates a Registry pre-populated with the built-in
// codecs.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds or replaces a codec under the given name.
func (r *Registry) Register(name string, fn DecodeFunc) {
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[name] = fn
}

// Has reports whether a codec is registered under the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[name]
	return ok
}

// Names returns the registered codec names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode runs the named codec over the payload. Unknown codec names,
// codec errors, and codec panics all yield a classified error; the
// caller drops the message and counts it.
func (r *Registry) Decode(name string, data []byte, opts Options) (val types.Value, err error) {
	r.mu.RLock()
	fn, ok := r.codecs[name]
	r.mu.RUnlock()
	if !ok {
		return types.Null(), errors.WrapInvalid(errors.ErrUnknownCodec,
			"codec", "Decode", fmt.Sprintf("lookup codec %q", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("codec panicked",
				"codec", name,
				"panic", rec,
				"payload_len", len(data))
			val = types.Null()
			err = errors.WrapInvalid(
				fmt.Errorf("%w: codec %q panicked: %v", errors.ErrDecodeFailed, name, rec),
				"codec", "Decode", "run codec")
		}
	}()

	val, err = fn(data, opts)
	if err != nil {
		return types.Null(), errors.WrapInvalid(
			fmt.Errorf("%w: codec %q: %v", errors.ErrDecodeFailed, name, err),
			"codec", "Decode", "run codec")
	}
	return val, nil
}
