package evidence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/guardian-ai/internal/triggers"
)

// ThreatLevel is the analyzer's danger rating for a frame.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "LOW"
	ThreatMedium ThreatLevel = "MEDIUM"
	ThreatHigh   ThreatLevel = "HIGH"
)

// ParseThreatLevel normalises a rating, rejecting unknown values.
func ParseThreatLevel(s string) (ThreatLevel, error) {
	switch ThreatLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case ThreatLow:
		return ThreatLow, nil
	case ThreatMedium:
		return ThreatMedium, nil
	case ThreatHigh:
		return ThreatHigh, nil
	}
	return "", errors.New("evidence: unknown threat level")
}

// BackupStatus tracks an item's cloud copy.
type BackupStatus string

const (
	StatusPending   BackupStatus = "pending"
	StatusUploading BackupStatus = "uploading"
	StatusSecured   BackupStatus = "secured"
	StatusFailed    BackupStatus = "failed"
)

func (s BackupStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusUploading:
		return 1
	case StatusSecured:
		return 2
	}
	return -1
}

// CanTransition reports whether status may move from s to next.
// Secured and failed are terminal.
func (s BackupStatus) CanTransition(next BackupStatus) bool {
	if s == next {
		return true
	}
	if s == StatusSecured || s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.rank() > s.rank()
}

// Classification is the owner's verdict on an incident.
type Classification string

const (
	ClassLost         Classification = "LOST"
	ClassUnauthorized Classification = "UNAUTHORIZED"
	ClassEmergency    Classification = "EMERGENCY"
)

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	switch c {
	case ClassLost, ClassUnauthorized, ClassEmergency:
		return true
	}
	return false
}

// Analysis is the structured scene description for one frame.
type Analysis struct {
	ThreatLevel     ThreatLevel `json:"threatLevel"`
	Persons         []string    `json:"persons"`
	Vehicles        []string    `json:"vehicles"`
	LocationContext string      `json:"locationContext"`
	Timestamp       string      `json:"timestamp"`
}

// Item is one captured and analyzed frame.
type Item struct {
	ID             string         `json:"id"`
	ImageURL       string         `json:"imageUrl"`
	Analysis       *Analysis      `json:"analysis"`
	Timestamp      int64          `json:"timestamp"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	BackupStatus   BackupStatus   `json:"backupStatus"`
	IsShared       bool           `json:"isShared"`
	Sightings      int            `json:"sightings"`
	TriggerType    triggers.Type  `json:"triggerType"`
	Classification Classification `json:"classification,omitempty"`
}

// HasLocation reports whether both coordinates are present.
func (it Item) HasLocation() bool {
	return it.Latitude != nil && it.Longitude != nil
}

// ImageData decodes the JPEG carried in ImageURL.
func (it Item) ImageData() ([]byte, error) {
	_, payload, ok := strings.Cut(it.ImageURL, ";base64,")
	if !ok || payload == "" {
		return nil, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("evidence: decode image: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	out := it
	if it.Analysis != nil {
		a := *it.Analysis
		a.Persons = cloneStrings(it.Analysis.Persons)
		a.Vehicles = cloneStrings(it.Analysis.Vehicles)
		out.Analysis = &a
	}
	if it.Latitude != nil {
		lat := *it.Latitude
		out.Latitude = &lat
	}
	if it.Longitude != nil {
		lng := *it.Longitude
		out.Longitude = &lng
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
