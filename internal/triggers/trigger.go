// Package triggers classifies the events that can start a capture session.
package triggers

import (
	"errors"
	"strings"
)

// Type identifies what started a capture session.
type Type string

const (
	Manual       Type = "MANUAL"
	Voice        Type = "VOICE"
	PowerButton  Type = "POWER_BUTTON"
	AirplaneMode Type = "AIRPLANE_MODE"
	SIMEject     Type = "SIM_EJECT"
	Movement     Type = "MOVEMENT"
	UnlockFailed Type = "UNLOCK_FAILED"
	Geofence     Type = "GEOFENCE"
)

// All lists every trigger type in display order.
var All = []Type{Manual, Voice, PowerButton, AirplaneMode, SIMEject, Movement, UnlockFailed, Geofence}

// ErrUnknownTrigger is returned by Parse for values outside the enumeration.
var ErrUnknownTrigger = errors.New("triggers: unknown trigger type")

// Parse accepts the wire form in any case.
func Parse(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrUnknownTrigger
	}
	return t, nil
}

// Valid reports whether t is a known trigger type.
func (t Type) Valid() bool {
	for _, known := range All {
		if t == known {
			return true
		}
	}
	return false
}

// Automatic is true for anything the user did not start by hand or voice.
func (t Type) Automatic() bool {
	return t.Valid() && t != Manual && t != Voice
}

// Critical triggers skip the countdown: the device may go offline any moment.
func (t Type) Critical() bool {
	return t == SIMEject || t == AirplaneMode
}

// ForcesFrontCamera is true for triggers where the face of whoever holds
// the phone is the evidence.
func (t Type) ForcesFrontCamera() bool {
	return t == UnlockFailed || t == SIMEject
}
