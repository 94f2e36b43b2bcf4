package framestore

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uni298/OSMStudio/pkg/core"
)

func TestWriteAndRead(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := s.Write("sess-1", 3, []byte("frame data"))
	require.NoError(t, err)
	assert.Contains(t, path, "frame_000003.png")

	data, err := s.Read("sess-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame data"), data)
}

func TestRead_Missing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read("sess-1", 0)
	assert.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	frames := []core.FrameDescriptor{
		{FrameIndex: 0, QueryTime: 0, Path: "frame_000000.png", CapturedAt: now},
		{FrameIndex: 1, QueryTime: 0.0333, Path: "frame_000001.png", CapturedAt: now},
	}

	_, err = s.WriteManifest("sess-1", frames)
	require.NoError(t, err)

	got, err := s.ReadManifest("sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].FrameIndex)
	assert.Equal(t, 1, got[1].FrameIndex)
	assert.InDelta(t, 0.0333, got[1].QueryTime, 1e-9)
}

func TestDeleteSession(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Write("sess-1", 0, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession("sess-1"))

	_, err = os.Stat(s.SessionDir("sess-1"))
	assert.True(t, os.IsNotExist(err))

	// Deleting an unknown session is a no-op.
	assert.NoError(t, s.DeleteSession("nope"))
}
