package job

// Definition is a typed job registration record. P is the parameter type,
// decoded from the encoded payload bytes carried by each Request.
type Definition[P any] struct {
	// Name uniquely identifies this job type within a registry.
	Name string

	// Handler processes a decoded payload. Its error participates in
	// retry/backoff unless it is (or wraps) chronopool.ErrCancelled.
	Handler func(ctx Context, payload P) error

	// Opts configures the retry budget.
	Opts Options
}

// NewDefinition creates a typed job definition with the given name and
// handler, applying any options over DefaultOptions.
func NewDefinition[P any](name string, handler func(ctx Context, payload P) error, opts ...Option) *Definition[P] {
	def := &Definition[P]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}

	return def
}
