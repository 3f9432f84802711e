package room

// Client is one attached connection from the coordinator's point of
// view. Send must not block: transports queue the payload and report an
// error when the queue is full.
type Client interface {
	ID() string
	Send(payload []byte) error
}

// Registry tracks the connections attached to one room, for presence
// counting and broadcast fan-out. It is owned by a single coordinator
// and only ever touched from that coordinator's event loop, so it
// carries no lock.
type Registry struct {
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Add(client Client) {
	r.clients[client.ID()] = client
}

func (r *Registry) Remove(connectionID string) {
	delete(r.clients, connectionID)
}

func (r *Registry) Count() int {
	return len(r.clients)
}

// AllExcept returns every attached client other than the named one.
// Used to exclude a sender from its own broadcast.
func (r *Registry) AllExcept(connectionID string) []Client {
	others := make([]Client, 0, len(r.clients))
	for id, client := range r.clients {
		if id == connectionID {
			continue
		}
		others = append(others, client)
	}
	return others
}
