// Package community holds the incident markers shown on the community map.
package community

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

// IncidentType labels a marker.
type IncidentType string

const (
	Theft      IncidentType = "Theft"
	Harassment IncidentType = "Harassment"
	Suspicious IncidentType = "Suspicious"
	Sighting   IncidentType = "Sighting"
)

// Default position for a user report without coordinates (central Algiers).
const (
	DefaultLatitude  = 36.75
	DefaultLongitude = 3.05
)

var ErrInvalidCoordinates = errors.New("community: coordinates out of range")

// Marker is one point on the map.
type Marker struct {
	ID             string       `json:"id"`
	Lat            float64      `json:"lat"`
	Lng            float64      `json:"lng"`
	Type           IncidentType `json:"type"`
	Description    string       `json:"description"`
	Time           string       `json:"time"`
	IsUserReported bool         `json:"isUserReported,omitempty"`
}

// Seed returns the markers the map starts with.
func Seed() []Marker {
	return []Marker{
		{ID: "seed-1", Lat: 36.7538, Lng: 3.0588, Type: Theft, Description: "Phone snatching near Grande Poste", Time: "2h ago"},
		{ID: "seed-2", Lat: 36.7762, Lng: 3.0602, Type: Harassment, Description: "Harassment reported at Bab El Oued market", Time: "5h ago"},
		{ID: "seed-3", Lat: 36.7372, Lng: 3.0865, Type: Suspicious, Description: "Suspicious vehicle circling Hussein Dey", Time: "1d ago"},
		{ID: "seed-4", Lat: 36.7650, Lng: 3.0480, Type: Sighting, Description: "Stolen device sighted near Place des Martyrs", Time: "3h ago"},
	}
}

// Map is the concurrent-safe marker list, newest first.
type Map struct {
	mu      sync.RWMutex
	markers []Marker
	now     func() time.Time
}

func NewMap() *Map {
	return &Map{markers: Seed(), now: time.Now}
}

// AddUserReport puts a user-reported theft marker at the head of the
// list. Missing coordinates fall back to the default position.
func (m *Map) AddUserReport(lat, lng *float64) (Marker, error) {
	pos := [2]float64{DefaultLatitude, DefaultLongitude}
	if lat != nil && lng != nil {
		if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
			return Marker{}, ErrInvalidCoordinates
		}
		pos = [2]float64{*lat, *lng}
	}
	marker := Marker{
		ID:             "user-" + strconv.FormatInt(m.now().UnixMilli(), 10),
		Lat:            pos[0],
		Lng:            pos[1],
		Type:           Theft,
		Description:    "Incident Reported by User",
		Time:           "Just now",
		IsUserReported: true,
	}

	m.mu.Lock()
	m.markers = append([]Marker{marker}, m.markers...)
	m.mu.Unlock()
	return marker, nil
}

// List returns a copy of the markers.
func (m *Map) List() []Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

// Reset restores the seed markers.
func (m *Map) Reset() {
	m.mu.Lock()
	m.markers = Seed()
	m.mu.Unlock()
}
