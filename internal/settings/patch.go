package settings

// Patch is a partial update of the trigger toggles. Nil fields are left
// unchanged. Contacts and the vault PIN have their own operations.
type Patch struct {
	PowerButton  *bool    `json:"powerButton,omitempty"`
	AirplaneMode *bool    `json:"airplaneMode,omitempty"`
	SIMEject     *bool    `json:"simEject,omitempty"`
	Movement     *bool    `json:"movement,omitempty"`
	UnlockFailed *bool    `json:"unlockFailed,omitempty"`
	Geofence     *bool    `json:"geofence,omitempty"`
	SafeZones    []string `json:"safeZones,omitempty"`
	DemoMode     *bool    `json:"demoMode,omitempty"`
	StealthMode  *bool    `json:"stealthMode,omitempty"`
}

// Apply copies the set fields onto s.
func (p Patch) Apply(s *Settings) {
	setBool(&s.PowerButton, p.PowerButton)
	setBool(&s.AirplaneMode, p.AirplaneMode)
	setBool(&s.SIMEject, p.SIMEject)
	setBool(&s.Movement, p.Movement)
	setBool(&s.UnlockFailed, p.UnlockFailed)
	setBool(&s.Geofence, p.Geofence)
	setBool(&s.DemoMode, p.DemoMode)
	setBool(&s.StealthMode, p.StealthMode)
	if p.SafeZones != nil {
		s.SafeZones = append([]string(nil), p.SafeZones...)
	}
}
