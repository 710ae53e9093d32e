// Package settings holds the smart-trigger configuration owned by the device user.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wolfman30/guardian-ai/internal/triggers"
)

// CurrentVersion is written on every save.
const CurrentVersion = 1

// MaxContacts is the number of emergency contacts a user may register.
const MaxContacts = 3

// DefaultPIN is accepted by the power-button owner check when no vault PIN is set.
const DefaultPIN = "1234"

var (
	ErrTooManyContacts = errors.New("settings: contact limit reached")
	ErrContactNotFound = errors.New("settings: contact not found")
	ErrInvalid         = errors.New("settings: invalid")
)

// Relationship of an emergency contact to the owner.
type Relationship string

const (
	Family    Relationship = "Family"
	Friend    Relationship = "Friend"
	Colleague Relationship = "Colleague"
	Other     Relationship = "Other"
)

// Contact is someone notified when evidence is secured.
type Contact struct {
	ID           string       `json:"id"`
	Name         string       `json:"name" validate:"required,max=80"`
	Email        string       `json:"email" validate:"required,email"`
	Phone        string       `json:"phone,omitempty" validate:"omitempty,max=32"`
	Relationship Relationship `json:"relationship" validate:"required,oneof=Family Friend Colleague Other"`
}

// Settings toggles the automatic triggers and carries vault state.
type Settings struct {
	Version        int       `json:"version"`
	PowerButton    bool      `json:"powerButton"`
	AirplaneMode   bool      `json:"airplaneMode"`
	SIMEject       bool      `json:"simEject"`
	Movement       bool      `json:"movement"`
	UnlockFailed   bool      `json:"unlockFailed"`
	Geofence       bool      `json:"geofence"`
	SafeZones      []string  `json:"safeZones"`
	DemoMode       bool      `json:"demoMode"`
	StealthMode    bool      `json:"stealthMode"`
	Contacts       []Contact `json:"contacts" validate:"max=3,dive"`
	VaultPIN       string    `json:"vaultPin,omitempty" validate:"omitempty,pin"`
	LockoutUntil   int64     `json:"lockoutUntil,omitempty"`
	FailedAttempts int       `json:"failedAttempts,omitempty" validate:"min=0"`
}

// Defaults is the first-run configuration.
func Defaults() Settings {
	return Settings{
		Version:      CurrentVersion,
		PowerButton:  true,
		AirplaneMode: true,
		SIMEject:     true,
		Movement:     true,
		UnlockFailed: true,
		Geofence:     false,
		SafeZones:    []string{},
		DemoMode:     false,
		StealthMode:  true,
		Contacts:     []Contact{},
	}
}

// record mirrors Settings with every field optional so older saves decode.
type record struct {
	Version        *int      `json:"version"`
	PowerButton    *bool     `json:"powerButton"`
	AirplaneMode   *bool     `json:"airplaneMode"`
	SIMEject       *bool     `json:"simEject"`
	Movement       *bool     `json:"movement"`
	UnlockFailed   *bool     `json:"unlockFailed"`
	Geofence       *bool     `json:"geofence"`
	SafeZones      []string  `json:"safeZones"`
	DemoMode       *bool     `json:"demoMode"`
	StealthMode    *bool     `json:"stealthMode"`
	Contacts       []Contact `json:"contacts"`
	VaultPIN       *string   `json:"vaultPin"`
	LockoutUntil   *int64    `json:"lockoutUntil"`
	FailedAttempts *int      `json:"failedAttempts"`
}

// Decode reads a saved record, filling missing fields from Defaults.
// Contacts that fail validation are dropped here, once, so a record saved
// by an older client never blocks later updates.
func Decode(data []byte) (Settings, error) {
	s, _, err := decode(data)
	return s, err
}

func decode(data []byte) (Settings, []Contact, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Defaults(), nil, fmt.Errorf("settings: decode: %w", err)
	}
	s := Defaults()
	setBool(&s.PowerButton, r.PowerButton)
	setBool(&s.AirplaneMode, r.AirplaneMode)
	setBool(&s.SIMEject, r.SIMEject)
	setBool(&s.Movement, r.Movement)
	setBool(&s.UnlockFailed, r.UnlockFailed)
	setBool(&s.Geofence, r.Geofence)
	setBool(&s.DemoMode, r.DemoMode)
	setBool(&s.StealthMode, r.StealthMode)
	if r.SafeZones != nil {
		s.SafeZones = r.SafeZones
	}
	var dropped []Contact
	s.Contacts, dropped = repairContacts(r.Contacts)
	if r.VaultPIN != nil && validPIN(*r.VaultPIN) {
		s.VaultPIN = *r.VaultPIN
	}
	if r.LockoutUntil != nil {
		s.LockoutUntil = *r.LockoutUntil
	}
	if r.FailedAttempts != nil && *r.FailedAttempts > 0 {
		s.FailedAttempts = *r.FailedAttempts
	}
	s.Version = CurrentVersion
	return s, dropped, nil
}

// repairContacts normalizes saved contacts and splits off the ones that
// still fail validation or exceed MaxContacts.
func repairContacts(in []Contact) (kept, dropped []Contact) {
	kept = []Contact{}
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		c.Email = strings.TrimSpace(c.Email)
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		switch c.Relationship {
		case Family, Friend, Colleague, Other:
		default:
			c.Relationship = Other
		}
		if len(kept) >= MaxContacts || validate.Struct(c) != nil {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.SafeZones = append([]string{}, s.SafeZones...)
	out.Contacts = append([]Contact{}, s.Contacts...)
	return out
}

// Enabled reports whether t may start a session. Manual and voice
// triggers are always allowed.
func (s Settings) Enabled(t triggers.Type) bool {
	switch t {
	case triggers.Manual, triggers.Voice:
		return true
	case triggers.PowerButton:
		return s.PowerButton
	case triggers.AirplaneMode:
		return s.AirplaneMode
	case triggers.SIMEject:
		return s.SIMEject
	case triggers.Movement:
		return s.Movement
	case triggers.UnlockFailed:
		return s.UnlockFailed
	case triggers.Geofence:
		return s.Geofence
	}
	return false
}

// OwnerPIN is the PIN that proves ownership during the power-button check.
func (s Settings) OwnerPIN() string {
	if s.VaultPIN != "" {
		return s.VaultPIN
	}
	return DefaultPIN
}

// HasPIN reports whether the vault is protected.
func (s Settings) HasPIN() bool {
	return s.VaultPIN != ""
}

// AddContact appends c, assigning an id when it has none.
func (s *Settings) AddContact(c Contact) (Contact, error) {
	if len(s.Contacts) >= MaxContacts {
		return Contact{}, ErrTooManyContacts
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := validate.Struct(c); err != nil {
		return Contact{}, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	s.Contacts = append(s.Contacts, c)
	return c, nil
}

// RemoveContact drops the contact with id.
func (s *Settings) RemoveContact(id string) error {
	for i, c := range s.Contacts {
		if c.ID == id {
			s.Contacts = append(s.Contacts[:i], s.Contacts[i+1:]...)
			return nil
		}
	}
	return ErrContactNotFound
}

// Validate checks the whole record.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	return nil
}

// ValidPIN reports whether pin is exactly four ASCII digits.
func ValidPIN(pin string) bool {
	return validPIN(pin)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
		return validPIN(fl.Field().String())
	})
	return v
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
