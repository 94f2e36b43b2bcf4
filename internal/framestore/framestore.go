// Package framestore persists captured frames on disk, one directory per
// export session. The parallel coordinator writes frames here out of order;
// the manifest records presentation order for the encode stage.
package framestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Uni298/OSMStudio/internal/util"
	"github.com/Uni298/OSMStudio/pkg/core"
)

const manifestName = "manifest.json"

// Store writes session frames under a root directory.
type Store struct {
	root string
}

// New creates a frame store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create frame root: %w", err)
	}
	return &Store{root: dir}, nil
}

// SessionDir returns the directory holding one session's frames.
func (s *Store) SessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// Write stores one frame image and returns its path.
func (s *Store) Write(sessionID string, frameIndex int, data []byte) (string, error) {
	dir := s.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	path := filepath.Join(dir, util.FrameFileName(frameIndex))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write frame %d: %w", frameIndex, err)
	}
	return path, nil
}

// Read loads one frame image.
func (s *Store) Read(sessionID string, frameIndex int) ([]byte, error) {
	path := filepath.Join(s.SessionDir(sessionID), util.FrameFileName(frameIndex))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", frameIndex, err)
	}
	return data, nil
}

// WriteManifest stores the ordered frame descriptors for a session and
// returns the manifest path.
func (s *Store) WriteManifest(sessionID string, frames []core.FrameDescriptor) (string, error) {
	dir := s.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(frames, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(dir, manifestName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads the ordered frame descriptors for a session.
func (s *Store) ReadManifest(sessionID string) ([]core.FrameDescriptor, error) {
	path := filepath.Join(s.SessionDir(sessionID), manifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var frames []core.FrameDescriptor
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return frames, nil
}

// DeleteSession removes a session's frame directory.
func (s *Store) DeleteSession(sessionID string) error {
	return os.RemoveAll(s.SessionDir(sessionID))
}
