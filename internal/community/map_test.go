package community

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMapStartsWithSeed(t *testing.T) {
	m := NewMap()
	assert.Equal(t, Seed(), m.List())
	assert.Len(t, m.List(), 4)
}

func TestAddUserReport(t *testing.T) {
	m := NewMap()
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	lat, lng := 36.8, 3.1

	marker, err := m.AddUserReport(&lat, &lng)
	require.NoError(t, err)
	assert.Equal(t, "user-1700000000000", marker.ID)
	assert.Equal(t, Theft, marker.Type)
	assert.True(t, marker.IsUserReported)

	list := m.List()
	require.Len(t, list, 5)
	assert.Equal(t, marker, list[0])
}

func TestAddUserReportDefaultsPosition(t *testing.T) {
	m := NewMap()
	marker, err := m.AddUserReport(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLatitude, marker.Lat)
	assert.Equal(t, DefaultLongitude, marker.Lng)
}

func TestAddUserReportRejectsBadCoordinates(t *testing.T) {
	lat, lng := 120.0, 3.0
	_, err := NewMap().AddUserReport(&lat, &lng)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestResetAndCopies(t *testing.T) {
	m := NewMap()
	_, err := m.AddUserReport(nil, nil)
	require.NoError(t, err)

	list := m.List()
	list[0].Description = "mutated"
	assert.NotEqual(t, "mutated", m.List()[0].Description)

	m.Reset()
	assert.Equal(t, Seed(), m.List())
}
