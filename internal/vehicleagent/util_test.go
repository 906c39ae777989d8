package vehicleagent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverVehicleID(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vin")
	require.NoError(t, os.WriteFile(file, []byte(" FILEVIN\n"), 0o600))

	old := VINFile
	VINFile = file
	t.Cleanup(func() { VINFile = old })

	t.Setenv("CPEER_VEHICLE_ID", "")
	assert.Equal(t, "FILEVIN", DiscoverVehicleID(""))

	t.Setenv("CPEER_VEHICLE_ID", "ENVVIN")
	assert.Equal(t, "ENVVIN", DiscoverVehicleID(""))
	assert.Equal(t, "FLAGVIN", DiscoverVehicleID("FLAGVIN"))

	t.Setenv("CPEER_VEHICLE_ID", "")
	VINFile = filepath.Join(t.TempDir(), "missing")
	assert.Empty(t, DiscoverVehicleID(""))
}
