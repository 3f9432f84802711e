package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quillboard/backend/internal/wire"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 10 * time.Second
	eventQueueSize      = 64
)

var (
	errMissingRoomName      = errors.New("room name required")
	errMissingSnapshotStore = errors.New("snapshot store dependency required")
)

type joinEvent struct {
	client Client
}

type leaveEvent struct {
	connectionID string
}

type frameEvent struct {
	connectionID string
	payload      []byte
}

type CoordinatorConfig struct {
	RoomName     string
	Snapshots    *SnapshotStore
	Logger       *zap.Logger
	Clock        func() time.Time
	WriteTimeout time.Duration
}

// Coordinator drives one room. All connection and message events funnel
// through a single event loop goroutine, which serializes every state
// mutation for the room; distinct rooms share nothing and run fully in
// parallel. Snapshot writes happen on a companion goroutine with at
// most one write in flight, so broadcasts never wait on storage.
type Coordinator struct {
	name         string
	snapshots    *SnapshotStore
	logger       *zap.Logger
	clock        func() time.Time
	writeTimeout time.Duration

	events  chan any
	persist chan wire.Snapshot
	quit    chan struct{}
	stop    sync.Once

	// owned by the event loop
	state    *State
	registry *Registry
	loaded   bool
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.RoomName == "" {
		return nil, errMissingRoomName
	}
	if cfg.Snapshots == nil {
		return nil, errMissingSnapshotStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Coordinator{
		name:         cfg.RoomName,
		snapshots:    cfg.Snapshots,
		logger:       logger.With(zap.String("room", cfg.RoomName)),
		clock:        clock,
		writeTimeout: writeTimeout,
		events:       make(chan any, eventQueueSize),
		persist:      make(chan wire.Snapshot, 1),
		quit:         make(chan struct{}),
		registry:     NewRegistry(),
	}, nil
}

// Start launches the event loop and the persistence writer.
func (c *Coordinator) Start() {
	go c.runEvents()
	go c.runPersistence()
}

// Stop terminates both goroutines. Attached clients are not closed;
// their transports observe the dead room through failed sends.
func (c *Coordinator) Stop() {
	c.stop.Do(func() {
		close(c.quit)
	})
}

// Join attaches a client: the room state is loaded (or expired and
// reset) if not yet resident, the client receives the init snapshot,
// and everyone else receives a user-joined notice.
func (c *Coordinator) Join(client Client) {
	c.enqueue(joinEvent{client: client})
}

// Leave detaches a client and notifies the remaining connections.
func (c *Coordinator) Leave(connectionID string) {
	c.enqueue(leaveEvent{connectionID: connectionID})
}

// HandleFrame processes one raw frame received from a connection.
func (c *Coordinator) HandleFrame(connectionID string, payload []byte) {
	c.enqueue(frameEvent{connectionID: connectionID, payload: payload})
}

func (c *Coordinator) enqueue(event any) {
	select {
	case c.events <- event:
	case <-c.quit:
	}
}

func (c *Coordinator) runEvents() {
	for {
		select {
		case <-c.quit:
			return
		case event := <-c.events:
			switch typed := event.(type) {
			case joinEvent:
				c.handleJoin(typed.client)
			case frameEvent:
				c.handleFrame(typed.connectionID, typed.payload)
			case leaveEvent:
				c.handleLeave(typed.connectionID)
			}
		}
	}
}

func (c *Coordinator) handleJoin(client Client) {
	if !c.loaded {
		c.loadState(client)
	}

	c.state.TouchActivity()
	c.registry.Add(client)
	activeUsers := c.registry.Count()

	initMessage := wire.Message{Type: wire.MessageTypeInit, ActiveUsers: activeUsers}
	if c.state.HasContent() {
		snapshot := c.state.Snapshot()
		initMessage.State = &snapshot
	}
	c.sendMessage(client, initMessage)

	c.broadcastMessage(wire.Message{
		Type:        wire.MessageTypeUserJoined,
		UserID:      client.ID(),
		ActiveUsers: activeUsers,
	}, client.ID())

	c.logger.Info("client joined", zap.String("connection", client.ID()), zap.Int("active", activeUsers))
}

// loadState hydrates the room from durable storage. Joins queued while
// the fetch runs are handled afterwards from the resident state, so a
// room is never loaded twice concurrently.
func (c *Coordinator) loadState(client Client) {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	snapshot, err := c.snapshots.Load(ctx, c.name)
	var expired *ExpiredError
	switch {
	case errors.As(err, &expired):
		c.logger.Info("expired room purged", zap.Int("inactiveDays", expired.InactiveDays))
		c.sendMessage(client, wire.Message{
			Type:         wire.MessageTypeRoomExpired,
			Notice:       expired.Error(),
			InactiveDays: expired.InactiveDays,
		})
		c.state = NewState(c.clock)
	case err != nil:
		c.logger.Error("room load failed, starting empty", zap.Error(err))
		c.state = NewState(c.clock)
	case snapshot != nil:
		c.state = RestoreState(*snapshot, c.clock)
	default:
		c.state = NewState(c.clock)
	}
	c.loaded = true
}

func (c *Coordinator) handleFrame(connectionID string, payload []byte) {
	message, err := wire.Decode(payload)
	if err != nil {
		c.logger.Debug("dropping undecodable frame",
			zap.String("connection", connectionID), zap.Error(err))
		return
	}

	// Peers see the original bytes before any storage work happens.
	c.broadcastRaw(payload, connectionID)

	switch message.Type {
	case wire.MessageTypeCanvasUpdate:
		c.state.ApplyCanvasUpdate(message.Elements, message.AppState, message.Files)
	case wire.MessageTypeMarkdownUpdate:
		c.state.ApplyMarkdownUpdate(message.MarkdownNotes)
	case wire.MessageTypeImageUpdate:
		c.state.ApplyImageUpdate(message.ImageHistory)
	default:
		// Unknown types are forwarded but never dispatched, so newer
		// clients can ship additions without breaking this server.
		return
	}

	c.schedulePersist()
}

func (c *Coordinator) handleLeave(connectionID string) {
	c.registry.Remove(connectionID)
	activeUsers := c.registry.Count()

	c.broadcastMessage(wire.Message{
		Type:        wire.MessageTypeUserLeft,
		UserID:      connectionID,
		ActiveUsers: activeUsers,
	}, connectionID)

	c.logger.Info("client left", zap.String("connection", connectionID), zap.Int("active", activeUsers))
}

func (c *Coordinator) sendMessage(client Client, message wire.Message) {
	payload, err := wire.Encode(message)
	if err != nil {
		c.logger.Error("failed to encode message", zap.String("type", string(message.Type)), zap.Error(err))
		return
	}
	if err := client.Send(payload); err != nil {
		c.logger.Debug("send failed",
			zap.String("connection", client.ID()), zap.String("type", string(message.Type)), zap.Error(err))
	}
}

func (c *Coordinator) broadcastMessage(message wire.Message, exceptID string) {
	payload, err := wire.Encode(message)
	if err != nil {
		c.logger.Error("failed to encode broadcast", zap.String("type", string(message.Type)), zap.Error(err))
		return
	}
	c.broadcastRaw(payload, exceptID)
}

func (c *Coordinator) broadcastRaw(payload []byte, exceptID string) {
	for _, client := range c.registry.AllExcept(exceptID) {
		if err := client.Send(payload); err != nil {
			c.logger.Debug("broadcast send failed",
				zap.String("connection", client.ID()), zap.Error(err))
		}
	}
}

// schedulePersist queues the current snapshot for the writer. The queue
// holds a single slot: a snapshot still waiting there is superseded by
// the newer one, which both bounds write traffic and keeps writes for a
// room strictly ordered.
func (c *Coordinator) schedulePersist() {
	snapshot := c.state.Snapshot()
	for {
		select {
		case c.persist <- snapshot:
			return
		default:
		}
		select {
		case <-c.persist:
		default:
		}
	}
}

func (c *Coordinator) runPersistence() {
	for {
		select {
		case <-c.quit:
			return
		case snapshot := <-c.persist:
			ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
			err := c.snapshots.Save(ctx, c.name, snapshot)
			cancel()
			if err != nil {
				// The resident state stays authoritative; the next
				// update is the retry point.
				c.logger.Warn("snapshot write failed", zap.Error(err))
			}
		}
	}
}
