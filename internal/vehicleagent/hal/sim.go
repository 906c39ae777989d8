// Package hal provides the simulated vehicle the agent drives.
package hal

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/autopeer-io/fleetpeer/internal/vehicleagent/core"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

const (
	earthRadiusKm = 6371.0

	fullRangeKm    = 400.0
	nominalVoltage = 350.0
	drainPerSample = 0.05
)

// SimHAL simulates the sensors of an autonomous vehicle. Position follows the
// route the agent replays, everything else is sampled around plausible values.
type SimHAL struct {
	vin      string
	firmware string

	mu          sync.Mutex
	rng         *rand.Rand
	driving     bool
	positioned  bool
	location    protocol.Location
	heading     float64
	odometer    float64
	battery     float64
	temperature float64
}

var _ core.HAL = (*SimHAL)(nil)

func NewSimHAL(vin, firmware string, seed uint64) *SimHAL {
	return &SimHAL{
		vin:         vin,
		firmware:    firmware,
		rng:         rand.New(rand.NewPCG(seed, seed>>1|1)),
		location:    protocol.Location{Altitude: protocol.DefaultAltitude},
		battery:     100,
		temperature: 21,
	}
}

func (h *SimHAL) VehicleID() string       { return h.vin }
func (h *SimHAL) FirmwareVersion() string { return h.firmware }

func (h *SimHAL) SetDriving(driving bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.driving = driving
}

// MoveTo advances the odometer by the great-circle distance and turns the
// heading toward loc.
func (h *SimHAL) MoveTo(loc protocol.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.positioned {
		h.odometer += distanceKm(h.location, loc)
		h.heading = bearing(h.location, loc)
	}
	h.location = loc
	h.positioned = true
}

func (h *SimHAL) Telemetry() protocol.Telemetry {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := protocol.Telemetry{
		Location:   h.location,
		Heading:    h.heading,
		Odometer:   math.Round(h.odometer*1000) / 1000,
		Autonomous: h.driving,
	}

	if h.driving {
		t.Speed = 20 + h.rng.Float64()*20
		t.BatteryCurrent = 40 + h.rng.Float64()*20
		h.battery = math.Max(0, h.battery-drainPerSample)
		h.temperature = math.Min(45, h.temperature+h.rng.Float64()*0.2)
	} else {
		t.BatteryCurrent = 0.5 + h.rng.Float64()
		h.temperature = math.Max(21, h.temperature-0.1)
	}

	t.BatteryLevel = h.battery
	t.StateOfCharge = h.battery
	t.BatteryVoltage = nominalVoltage * (0.9 + 0.1*h.battery/100)
	t.EstimatedRange = fullRangeKm * h.battery / 100
	t.Temperature = h.temperature
	return t
}

// distanceKm is the haversine distance between a and b.
func distanceKm(a, b protocol.Location) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(s))
}

// bearing is the initial compass heading from a to b in degrees.
func bearing(a, b protocol.Location) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
