package chat

// Bus is a named-event bus with exactly one handler per event name.
// Emission is synchronous and preserves caller order; the bus itself never
// reorders or coalesces.
type Bus[K comparable, P any] struct {
	handlers map[K]func(P)
}

// NewBus returns an empty bus.
func NewBus[K comparable, P any]() *Bus[K, P] {
	return &Bus[K, P]{handlers: make(map[K]func(P))}
}

// On binds the handler for an event name, replacing any previous binding.
func (b *Bus[K, P]) On(name K, handler func(P)) {
	b.handlers[name] = handler
}

// Has reports whether a handler is bound for the event name.
func (b *Bus[K, P]) Has(name K) bool {
	_, ok := b.handlers[name]
	return ok
}

// Emit invokes the bound handler synchronously. Returns false when no
// handler is bound.
func (b *Bus[K, P]) Emit(name K, payload P) bool {
	handler, ok := b.handlers[name]
	if !ok {
		return false
	}
	handler(payload)
	return true
}
