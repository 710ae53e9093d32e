package evidence

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageData(t *testing.T) {
	it := Item{ImageURL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8})}
	data, err := it.ImageData()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	_, err = Item{}.ImageData()
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = Item{ImageURL: "data:image/jpeg;base64,%%%"}.ImageData()
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to BackupStatus
		ok       bool
	}{
		{StatusPending, StatusUploading, true},
		{StatusUploading, StatusSecured, true},
		{StatusPending, StatusSecured, true},
		{StatusPending, StatusFailed, true},
		{StatusUploading, StatusFailed, true},
		{StatusSecured, StatusPending, false},
		{StatusSecured, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusUploading, StatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseThreatLevel(t *testing.T) {
	lvl, err := ParseThreatLevel(" high ")
	require.NoError(t, err)
	assert.Equal(t, ThreatHigh, lvl)

	_, err = ParseThreatLevel("CRITICAL")
	assert.Error(t, err)
}
