package zone

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ws281x-core/ledctl/internal/color"
)

func TestLoadSnapshotMissingFileReturnsNil(t *testing.T) {
	states, err := LoadSnapshot(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Nil(t, states)
}

func TestFlushThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	want := map[ID]State{
		"porch": {Color: color.NewRGB(9, 9, 9), Brightness: 42, IsOn: true, Mode: ModeStatic, AnimationParams: map[string]float64{}},
	}
	w := NewSnapshotWriter(path, time.Hour, func() map[ID]State { return want })
	require.NoError(t, w.Flush())

	got, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, want["porch"].Brightness, got["porch"].Brightness)
}

func TestLoadSnapshotDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"states":{"porch":{"Brightness":1}},"checksum":"deadbeef"}`), 0o644))

	_, err := LoadSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestNotifyChangedDebouncesMultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	calls := 0
	w := NewSnapshotWriter(path, 20*time.Millisecond, func() map[ID]State {
		calls++
		return map[ID]State{}
	})

	w.NotifyChanged()
	w.NotifyChanged()
	w.NotifyChanged()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, calls)
}
