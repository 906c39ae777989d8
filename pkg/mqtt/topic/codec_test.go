package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    Subject
		wantErr bool
	}{
		{"routing key", "vehicle.V1.telemetry", Subject{VIN: "V1", Kind: KindTelemetry}, false},
		{"device topic", "vehicle/V1/device-demands", Subject{VIN: "V1", Kind: KindDeviceDemands}, false},
		{"extra segments ignored", "vehicle/V1/mission-events/extra", Subject{VIN: "V1", Kind: KindMissionEvents}, false},
		{"unknown kind is still routable", "vehicle.V1.diagnostics", Subject{VIN: "V1", Kind: "diagnostics"}, false},
		{"too short", "vehicle.V1", Subject{}, true},
		{"wrong namespace", "fleet.V1.telemetry", Subject{}, true},
		{"empty vin", "vehicle//telemetry", Subject{}, true},
		{"empty", "", Subject{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.subject)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedSubject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, vin := range []string{"V1", "WVWZZZ1JZXW000001", "sim-42"} {
		for _, kind := range Kinds {
			for _, subject := range []string{Encode(vin, kind), EncodeRoutingKey(vin, kind)} {
				got, err := Decode(subject)
				require.NoError(t, err, subject)
				assert.Equal(t, Subject{VIN: vin, Kind: kind}, got)
			}
		}
	}
}

func TestFilters(t *testing.T) {
	assert.Equal(t, "vehicle/+/+", AllVehicles())
	assert.Equal(t, "vehicle/+/commands", Vehicle(KindCommands))
	assert.Equal(t, "$share/missionhub/vehicle/+/+", Shared("missionhub", AllVehicles()))
	assert.Equal(t, "vehicle/+/+", Shared("", AllVehicles()))
}

func TestKnown(t *testing.T) {
	assert.True(t, KindLocation.Known())
	assert.False(t, Kind("status").Known())
}
