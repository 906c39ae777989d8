package vehicleagent

import (
	"os"
	"strings"

	"github.com/autopeer-io/fleetpeer/pkg/log"
)

// VINFile is read when neither a flag nor the environment names the vehicle.
var VINFile = "/etc/fleetpeer/vin"

// DiscoverVehicleID resolves the VIN: an explicit value first, then the
// CPEER_VEHICLE_ID environment variable, then VINFile.
func DiscoverVehicleID(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if envID := os.Getenv("CPEER_VEHICLE_ID"); envID != "" {
		log.Info("VehicleID detected from env", "id", envID)
		return envID
	}

	if content, err := os.ReadFile(VINFile); err == nil {
		id := strings.TrimSpace(string(content))
		if id != "" {
			log.Info("VehicleID detected from file", "id", id)
			return id
		}
	}

	return ""
}
