package cursor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultKey is the store key the syncer uses unless configured otherwise.
const DefaultKey = "sirsync"

// Cursor marks how far the sync has progressed: the highest incident id
// delivered to the pipeline and when the source was last checked. Persisted
// values only ever grow, see Syncer.advance.
type Cursor struct {
	LastIncidentID int64
	LastRunAt      time.Time
}

// String encodes the cursor as a plain string, "<id>@<RFC3339 timestamp>".
// Stores hold strings only; parsing is the caller's job.
func (c Cursor) String() string {
	if c.LastRunAt.IsZero() {
		return strconv.FormatInt(c.LastIncidentID, 10)
	}
	return fmt.Sprintf("%d@%s", c.LastIncidentID, c.LastRunAt.UTC().Format(time.RFC3339))
}

// Parse reads a stored cursor value. A bare integer is accepted for values
// written before the run timestamp was added.
func Parse(s string) (Cursor, error) {
	idPart, tsPart, hasTS := strings.Cut(s, "@")

	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("cursor %q: %w", s, err)
	}

	c := Cursor{LastIncidentID: id}
	if hasTS {
		ts, err := time.Parse(time.RFC3339, tsPart)
		if err != nil {
			return Cursor{}, fmt.Errorf("cursor %q: %w", s, err)
		}
		c.LastRunAt = ts
	}

	return c, nil
}

// Store is the external cursor store. Plain string values, no transactional
// semantics: two overlapping runs can race and the stale one wins. That is a
// known limitation, scheduled runs must not overlap.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type FilesystemOption func(*FilesystemStore)

func FilesystemWithLogger(logger *zap.Logger) FilesystemOption {
	return func(s *FilesystemStore) {
		s.logger = logger
	}
}

// FilesystemStore keeps one file per key under a base directory, written
// with a temp-file rename so a crash mid-write cannot corrupt the cursor.
type FilesystemStore struct {
	baseDir string
	logger  *zap.Logger
	mu      sync.Mutex
}

func NewFilesystemStore(baseDir string, opts ...FilesystemOption) *FilesystemStore {
	s := &FilesystemStore{
		baseDir: baseDir,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FilesystemStore) path(key string) string {
	return filepath.Join(s.baseDir, key+".cursor")
}

func (s *FilesystemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		s.logger.Info("no cursor found", zap.String("key", key))
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return strings.TrimSpace(string(data)), true, nil
}

func (s *FilesystemStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return err
	}

	fpath := s.path(key)
	tempPath := fpath + ".tmp"

	if err := os.WriteFile(tempPath, []byte(value), 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, fpath); err != nil {
		os.Remove(tempPath)
		return err
	}

	s.logger.Debug("cursor saved",
		zap.String("key", key),
		zap.String("value", value),
	)
	return nil
}
