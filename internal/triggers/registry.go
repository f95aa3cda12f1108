package triggers

// Registry maps broker type codes to trigger factories. It is built once
// during process wiring, before any task runs, and is read-only afterwards,
// so lookups need no locking. A lookup miss is not an error here; the broker
// action task turns it into a skip.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a broker type code with a factory. Registering the
// same code twice replaces the earlier factory.
func (r *Registry) Register(code string, factory Factory) {
	r.factories[code] = factory
}

// Resolve returns the factory for a broker type code, or false when no
// integration is configured for it.
func (r *Registry) Resolve(code string) (Factory, bool) {
	factory, ok := r.factories[code]
	return factory, ok
}

// Codes lists the registered broker type codes.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	return codes
}
