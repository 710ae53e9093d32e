// Package capture runs the trigger-to-evidence session: optional owner
// check or countdown, then periodic frame capture and analysis.
package capture

import (
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
)

// Plan is what a session will do for a trigger under the given settings.
type Plan struct {
	Trigger          triggers.Type
	Automatic        bool
	Critical         bool
	EffectiveStealth bool
	AuthCheck        bool
	Countdown        bool
	Disguise         bool
	StopControl      bool
	ForceFrontCamera bool
}

// NewPlan classifies a trigger. It has no side effects.
func NewPlan(t triggers.Type, s settings.Settings) Plan {
	automatic := t.Automatic()
	critical := t.Critical()
	stealth := automatic && s.StealthMode
	power := t == triggers.PowerButton
	return Plan{
		Trigger:          t,
		Automatic:        automatic,
		Critical:         critical,
		EffectiveStealth: stealth,
		AuthCheck:        power,
		Countdown:        automatic && !critical && !power && !stealth,
		Disguise:         stealth,
		StopControl:      !stealth || s.DemoMode,
		ForceFrontCamera: stealth && t.ForcesFrontCamera(),
	}
}
