package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors returned by Registry.Register and Registry.Decode.
// Wrap these with fmt.Errorf("...: %w", ...) rather than constructing new
// sentinels, so callers can branch with errors.Is.
var (
	// ErrDuplicateRegistration is returned by Register when a job name is
	// already present in the registry.
	ErrDuplicateRegistration = errors.New("job: duplicate registration")

	// ErrUnrecognisedJobID is returned by Decode when the envelope names a
	// job type absent from the registry.
	ErrUnrecognisedJobID = errors.New("job: unrecognised job id")

	// ErrDecodeJobFailed is returned by Decode when the envelope or its
	// parameters cannot be decoded.
	ErrDecodeJobFailed = errors.New("job: decode failed")
)

// entry is the type-erased form of a Definition[P] stored in a Registry.
type entry struct {
	maxRetryCount int
	decode        func(parameters []byte) (any, error)
	invoke        func(ctx Context, payload any) error
}

// Registry maps job names to type-erased definitions. It is safe for
// concurrent use. Populate it before starting a worker.Pool; reads after
// that point need no external synchronization but the map itself is
// still guarded for callers that register lazily.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// RegisterDefinition registers a typed job definition. The generic
// handler is wrapped in closures that JSON-decode the parameter bytes
// into P and type-assert them back before calling def.Handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[P any](r *Registry, def *Definition[P]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, def.Name)
	}

	r.entries[def.Name] = entry{
		maxRetryCount: def.Opts.MaxRetryCount,
		decode: func(parameters []byte) (any, error) {
			var p P
			if len(parameters) > 0 {
				if err := json.Unmarshal(parameters, &p); err != nil {
					return nil, fmt.Errorf("unmarshal payload for job %q: %w", def.Name, err)
				}
			}

			return p, nil
		},
		invoke: func(ctx Context, payload any) error {
			return def.Handler(ctx, payload.(P)) //nolint:forcetypeassert // decode always produces P
		},
	}

	return nil
}

// Names returns all registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}

	return names
}

// Invocation is the result of decoding an opaque buffer: a name, its
// retry budget, the parsed Request, and a closure that runs the typed
// handler against the already-decoded payload.
type Invocation struct {
	Name          string
	MaxRetryCount int
	Request       Request

	invoke func(ctx Context) error
}

// Execute runs the handler for this invocation.
func (i Invocation) Execute(ctx Context) error {
	return i.invoke(ctx)
}

// Decode decodes the msgpack envelope in buffer, looks up the matching
// definition, and decodes the parameter bytes. It returns
// ErrUnrecognisedJobID if no definition is registered under the decoded
// name, or ErrDecodeJobFailed if the envelope or its parameters cannot
// be decoded.
func (r *Registry) Decode(buffer []byte) (Invocation, error) {
	req, err := DecodeRequest(buffer)
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrDecodeJobFailed, err) //nolint:errorlint // sentinel wrap, not chain
	}

	r.mu.RLock()
	e, ok := r.entries[req.Name]
	r.mu.RUnlock()

	if !ok {
		return Invocation{}, fmt.Errorf("%w: %q", ErrUnrecognisedJobID, req.Name)
	}

	payload, err := e.decode(req.Parameters)
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrDecodeJobFailed, err) //nolint:errorlint // sentinel wrap, not chain
	}

	return Invocation{
		Name:          req.Name,
		MaxRetryCount: e.maxRetryCount,
		Request:       req,
		invoke: func(ctx Context) error {
			return e.invoke(ctx, payload)
		},
	}, nil
}
