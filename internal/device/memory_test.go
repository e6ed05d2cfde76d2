package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

func TestMemoryDeviceRoundTrip(t *testing.T) {
	d := NewMemoryDevice(64, DefaultLBASize)

	cmd := types.DeviceCommand{StartLBA: 3, LBACount: 1, FilePath: "nvmefs://test.db"}
	payload := []byte("Hello, World!")

	written, err := d.Write(payload, cmd)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), written)

	buf := make([]byte, len(payload))
	require.NoError(t, d.Read(buf, cmd))
	assert.Equal(t, payload, buf)
}

func TestMemoryDeviceInBlockOffset(t *testing.T) {
	d := NewMemoryDevice(64, DefaultLBASize)

	cmd := types.DeviceCommand{StartLBA: 5, LBACount: 1, Offset: 100, FilePath: "nvmefs://test.db"}
	_, err := d.Write([]byte("abc"), cmd)
	require.NoError(t, err)

	buf := make([]byte, 3)
	require.NoError(t, d.Read(buf, cmd))
	assert.Equal(t, []byte("abc"), buf)

	// The same bytes are visible at the raw block position.
	raw := make([]byte, 3)
	require.NoError(t, d.Read(raw, types.DeviceCommand{StartLBA: 5, LBACount: 1, Offset: 100}))
	assert.Equal(t, []byte("abc"), raw)
}

func TestMemoryDeviceRejectsRunsBeyondNamespace(t *testing.T) {
	d := NewMemoryDevice(8, DefaultLBASize)

	cmd := types.DeviceCommand{StartLBA: 7, LBACount: 2}
	assert.Error(t, d.Read(make([]byte, 2*DefaultLBASize), cmd))

	_, err := d.Write(make([]byte, 2*DefaultLBASize), cmd)
	assert.Error(t, err)
}

func TestMemoryDevicePlacementSelection(t *testing.T) {
	d := NewMemoryDevice(64, DefaultLBASize)

	assert.Equal(t, uint8(1), d.PlacementIdentifier("nvmefs:///tmp/spill.tmp"))
	assert.Equal(t, uint8(0), d.PlacementIdentifier("nvmefs://test.db"))
	assert.Equal(t, uint8(0), d.PlacementIdentifier("nvmefs://test.db.wal"))

	_, err := d.Write([]byte("x"), types.DeviceCommand{
		StartLBA: 1, LBACount: 1, FilePath: "nvmefs:///tmp/spill.tmp",
	})
	require.NoError(t, err)

	plid, ok := d.LastPlacement("nvmefs:///tmp/spill.tmp")
	require.True(t, ok)
	assert.Equal(t, uint8(1), plid)
}
