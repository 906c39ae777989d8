package protocol

import "fmt"

// DefaultAltitude is used when a route coordinate carries no altitude.
const DefaultAltitude = 9.0

// Point is a GeoJSON point, coordinates in [lon, lat, alt?] order.
type Point struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// LineString is a GeoJSON line string.
type LineString struct {
	Type        string      `json:"type" bson:"type"`
	Coordinates [][]float64 `json:"coordinates" bson:"coordinates"`
}

// NewLineString builds a GeoJSON line string.
func NewLineString(coords [][]float64) *LineString {
	return &LineString{Type: "LineString", Coordinates: coords}
}

// TaskSnapshot is the task definition copied into a mission at creation time.
type TaskSnapshot struct {
	Name             string      `json:"name,omitempty" bson:"name,omitempty"`
	Route            *LineString `json:"taskRouteLineString,omitempty" bson:"taskRouteLineString,omitempty"`
	StartPoint       *Point      `json:"startPoint,omitempty" bson:"startPoint,omitempty"`
	DestinationPoint *Point      `json:"destinationPoint,omitempty" bson:"destinationPoint,omitempty"`
}

// Location is the data section of a location envelope.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// LocationFromCoordinate converts a [lon, lat, alt?] coordinate, falling back
// to fallbackAlt when the altitude is absent.
func LocationFromCoordinate(c []float64, fallbackAlt float64) (Location, error) {
	if len(c) < 2 {
		return Location{}, fmt.Errorf("coordinate %v needs at least longitude and latitude", c)
	}
	loc := Location{Longitude: c[0], Latitude: c[1], Altitude: fallbackAlt}
	if len(c) > 2 {
		loc.Altitude = c[2]
	}
	return loc, nil
}

// MissionPayload is the params object of a load_mission command: the mission
// duty as the vehicle needs it.
type MissionPayload struct {
	ID          string       `json:"id"`
	MissionCode string       `json:"missionCode"`
	VIN         string       `json:"vin"`
	TaskCode    string       `json:"taskCode"`
	Task        TaskSnapshot `json:"taskDispatched"`
}
