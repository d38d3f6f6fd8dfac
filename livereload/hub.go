package livereload

import "sync"

// Hub dispatches Message to multiple listeners.
type Hub struct {
	mu    sync.RWMutex
	conns map[Listener]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		conns: map[Listener]struct{}{},
	}
}

// Listener is a connection that cares about the changes.
type Listener interface {
	// Dispatch must not block.
	Dispatch(Message)
	// Close disconnects the listener. It must be safe to call more than once.
	Close()
}

// Register adds a listener to the hub.
func (hub *Hub) Register(conn Listener) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	hub.conns[conn] = struct{}{}
}

// Unregister removes a listener from the hub.
func (hub *Hub) Unregister(conn Listener) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	delete(hub.conns, conn)
}

// Len returns the number of registered listeners.
func (hub *Hub) Len() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return len(hub.conns)
}

// Dispatch sends message to all registered listeners.
func (hub *Hub) Dispatch(message Message) {
	for _, conn := range hub.snapshot() {
		conn.Dispatch(message)
	}
}

// Close disconnects and forgets every listener.
func (hub *Hub) Close() {
	conns := hub.snapshot()
	hub.mu.Lock()
	hub.conns = map[Listener]struct{}{}
	hub.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// snapshot copies the listener set so listeners may unregister themselves
// from inside Dispatch or Close.
func (hub *Hub) snapshot() []Listener {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	conns := make([]Listener, 0, len(hub.conns))
	for conn := range hub.conns {
		conns = append(conns, conn)
	}
	return conns
}
