package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/quillboard/backend/internal/storage"
	"github.com/quillboard/backend/internal/wire"
	"go.uber.org/zap"
)

// DefaultRetention is how long an untouched room survives in durable
// storage before a connect attempt purges it.
const DefaultRetention = 90 * 24 * time.Hour

var errMissingBlobStore = errors.New("blob store dependency required")

// ExpiredError reports that a persisted room outlived the retention
// window. The durable entry has already been deleted when this error
// is returned.
type ExpiredError struct {
	InactiveDays int
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("room expired after %d days of inactivity", e.InactiveDays)
}

// snapshotCompressor and snapshotDecompressor are stateless helpers
// safe for concurrent EncodeAll/DecodeAll use across rooms.
var (
	snapshotCompressor   *zstd.Encoder
	snapshotDecompressor *zstd.Decoder
)

func init() {
	var err error
	snapshotCompressor, err = zstd.NewWriter(nil)
	if err != nil {
		panic("room: zstd encoder initialization failed: " + err.Error())
	}
	snapshotDecompressor, err = zstd.NewReader(nil)
	if err != nil {
		panic("room: zstd decoder initialization failed: " + err.Error())
	}
}

type SnapshotStoreConfig struct {
	Blobs     storage.BlobStore
	Retention time.Duration
	Clock     func() time.Time
	Logger    *zap.Logger
}

// SnapshotStore persists whole room snapshots as zstd-compressed CBOR
// blobs and enforces the retention window on load.
type SnapshotStore struct {
	blobs     storage.BlobStore
	retention time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

func NewSnapshotStore(cfg SnapshotStoreConfig) (*SnapshotStore, error) {
	if cfg.Blobs == nil {
		return nil, errMissingBlobStore
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{
		blobs:     cfg.Blobs,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Load fetches the persisted snapshot for a room. It returns nil for a
// room that was never persisted. A snapshot whose last activity lies
// beyond the retention window is deleted from durable storage and
// reported as an ExpiredError, never served.
func (s *SnapshotStore) Load(ctx context.Context, roomName string) (*wire.Snapshot, error) {
	payload, err := s.blobs.Get(ctx, roomName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snapshot, err := decodeSnapshotBlob(payload)
	if err != nil {
		return nil, err
	}

	idle := s.clock().UTC().Sub(time.UnixMilli(snapshot.LastActivityAt))
	if idle > s.retention {
		if err := s.blobs.Delete(ctx, roomName); err != nil {
			s.logger.Warn("expired room purge failed",
				zap.String("room", roomName), zap.Error(err))
		}
		return nil, &ExpiredError{InactiveDays: int(idle.Hours() / 24)}
	}

	return snapshot, nil
}

// Save writes the full snapshot for a room, replacing any prior blob.
func (s *SnapshotStore) Save(ctx context.Context, roomName string, snapshot wire.Snapshot) error {
	payload, err := encodeSnapshotBlob(snapshot)
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, roomName, payload)
}

// Delete removes a room's durable snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, roomName string) error {
	return s.blobs.Delete(ctx, roomName)
}

func encodeSnapshotBlob(snapshot wire.Snapshot) ([]byte, error) {
	encoded, err := wire.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return snapshotCompressor.EncodeAll(encoded, nil), nil
}

func decodeSnapshotBlob(payload []byte) (*wire.Snapshot, error) {
	decompressed, err := snapshotDecompressor.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	var snapshot wire.Snapshot
	if err := wire.Unmarshal(decompressed, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
