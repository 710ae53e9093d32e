package triggers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/guardian-ai/internal/locale"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		trigger   Type
		automatic bool
		critical  bool
	}{
		{Manual, false, false},
		{Voice, false, false},
		{PowerButton, true, false},
		{AirplaneMode, true, true},
		{SIMEject, true, true},
		{Movement, true, false},
		{UnlockFailed, true, false},
		{Geofence, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.trigger), func(t *testing.T) {
			assert.Equal(t, tt.automatic, tt.trigger.Automatic())
			assert.Equal(t, tt.critical, tt.trigger.Critical())
		})
	}
	assert.False(t, Type("BOGUS").Automatic())
}

func TestParse(t *testing.T) {
	got, err := Parse("sim_eject")
	require.NoError(t, err)
	assert.Equal(t, SIMEject, got)

	_, err = Parse("SHAKE")
	assert.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestMatchVoice(t *testing.T) {
	assert.True(t, MatchVoice("Please HELP ME now", locale.EN))
	assert.True(t, MatchVoice("guardian help", locale.EN))
	assert.True(t, MatchVoice("Au Secours !", locale.FR))
	assert.True(t, MatchVoice("النجدة", locale.AR))
	assert.False(t, MatchVoice("help me", locale.FR))
	assert.False(t, MatchVoice("   ", locale.EN))
	assert.False(t, MatchVoice("nice weather", locale.EN))
}

func TestVoicePhrasesReturnsCopy(t *testing.T) {
	phrases := VoicePhrases(locale.EN)
	phrases[0] = "changed"
	assert.Equal(t, "help me", VoicePhrases(locale.EN)[0])
}

func TestIsViolentMotion(t *testing.T) {
	assert.False(t, IsViolentMotion(0, 9.8, 0))
	assert.False(t, IsViolentMotion(10, 10, 10))
	assert.True(t, IsViolentMotion(-12, 10, 9))
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(10 * time.Second)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	assert.True(t, d.Allow(Movement))
	assert.False(t, d.Allow(Movement))
	assert.True(t, d.Allow(SIMEject), "other types are tracked separately")

	now = now.Add(11 * time.Second)
	assert.True(t, d.Allow(Movement))

	d.Reset()
	assert.True(t, d.Allow(Movement))
}

func TestDebouncerDisabled(t *testing.T) {
	d := NewDebouncer(0)
	assert.True(t, d.Allow(Manual))
	assert.True(t, d.Allow(Manual))

	var nilDebouncer *Debouncer
	assert.True(t, nilDebouncer.Allow(Manual))
}
