package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no settings exist for a node.
var ErrNotFound = errors.New("settings not found")

// Store persists node settings.
type Store interface {
	Save(ctx context.Context, nodeID string, s *Settings) error
	Load(ctx context.Context, nodeID string) (*Settings, error)
}

var validNodeID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func checkNodeID(nodeID string) error {
	if !validNodeID.MatchString(nodeID) {
		return fmt.Errorf("invalid node id %q", nodeID)
	}
	return nil
}

// Marshal encodes settings as a TOML document.
func Marshal(s *Settings) ([]byte, error) {
	return toml.Marshal(s)
}

// Unmarshal decodes a TOML document and applies defaults.
func Unmarshal(data []byte) (*Settings, error) {
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.ApplyDefaults()
	return &s, nil
}

// FileStore keeps one TOML file per node under a directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (f *FileStore) path(nodeID string) string {
	return filepath.Join(f.dir, nodeID+".toml")
}

func (f *FileStore) Save(_ context.Context, nodeID string, s *Settings) error {
	if err := checkNodeID(nodeID); err != nil {
		return err
	}
	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	tmp := f.path(nodeID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path(nodeID)); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	f.logger.Debug("saved settings", zap.String("node_id", nodeID), zap.Int("size_bytes", len(data)))
	return nil
}

func (f *FileStore) Load(_ context.Context, nodeID string) (*Settings, error) {
	if err := checkNodeID(nodeID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(nodeID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return Unmarshal(data)
}
