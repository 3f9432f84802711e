package room

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type ManagerConfig struct {
	Snapshots    *SnapshotStore
	Logger       *zap.Logger
	Clock        func() time.Time
	WriteTimeout time.Duration
}

// Manager hands out one coordinator per room name. Coordinators stay
// resident after their last client disconnects so a quick reconnect
// does not pay the load cost again; durable cleanup happens lazily via
// the snapshot store's retention check.
type Manager struct {
	snapshots    *SnapshotStore
	logger       *zap.Logger
	clock        func() time.Time
	writeTimeout time.Duration

	mu    sync.Mutex
	rooms map[string]*Coordinator
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
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
	return &Manager{
		snapshots:    cfg.Snapshots,
		logger:       logger,
		clock:        clock,
		writeTimeout: cfg.WriteTimeout,
		rooms:        make(map[string]*Coordinator),
	}, nil
}

// Room returns the coordinator for a name, starting it on first use.
func (m *Manager) Room(name string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if coordinator, ok := m.rooms[name]; ok {
		return coordinator, nil
	}

	coordinator, err := NewCoordinator(CoordinatorConfig{
		RoomName:     name,
		Snapshots:    m.snapshots,
		Logger:       m.logger,
		Clock:        m.clock,
		WriteTimeout: m.writeTimeout,
	})
	if err != nil {
		return nil, err
	}
	coordinator.Start()
	m.rooms[name] = coordinator
	return coordinator, nil
}

// Close stops every resident coordinator.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, coordinator := range m.rooms {
		coordinator.Stop()
	}
}
