package logpipeline

// ConnectionRegistry maps a connection key (podName + "/" + containerName)
// to its Connection. It is mutated only by the follower's control goroutine
// and the stream lifecycle callbacks it schedules back onto that same
// goroutine, so — like DedupBuffer — it needs no internal locking.
type ConnectionRegistry struct {
	connections map[string]*Connection
}

// NewConnectionRegistry builds an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{connections: make(map[string]*Connection)}
}

// Get returns the connection for key, if any.
func (r *ConnectionRegistry) Get(key string) (*Connection, bool) {
	c, ok := r.connections[key]
	return c, ok
}

// Set installs or replaces the connection for key.
func (r *ConnectionRegistry) Set(key string, c *Connection) {
	r.connections[key] = c
}

// Delete removes key from the registry.
func (r *ConnectionRegistry) Delete(key string) {
	delete(r.connections, key)
}

// All returns every registered connection. The returned slice is a
// snapshot; mutating the registry afterward does not affect it.
func (r *ConnectionRegistry) All() []*Connection {
	out := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		out = append(out, c)
	}
	return out
}

// Keys returns the current set of connection keys.
func (r *ConnectionRegistry) Keys() map[string]struct{} {
	out := make(map[string]struct{}, len(r.connections))
	for k := range r.connections {
		out[k] = struct{}{}
	}
	return out
}

// Len reports how many connections are registered.
func (r *ConnectionRegistry) Len() int {
	return len(r.connections)
}
