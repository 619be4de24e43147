package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func window(day, start, end string) models.AvailabilityWindow {
	return models.AvailabilityWindow{Day: day, StartTime: start, EndTime: end}
}

func TestParseWindowValid(t *testing.T) {
	w, err := ParseWindow(window("monday", "09:30", "17:00"))
	require.NoError(t, err)
	assert.Equal(t, time.Monday, w.Day)
	assert.Equal(t, 570, w.Start)
	assert.Equal(t, 1020, w.End)
	assert.Equal(t, 450, w.Minutes())
	assert.Equal(t, window("MONDAY", "09:30", "17:00"), w.Model())
}

func TestParseWindowRejectsMalformedInput(t *testing.T) {
	cases := map[string]models.AvailabilityWindow{
		"unknown day":     window("Funday", "09:00", "10:00"),
		"non numeric":     window("MONDAY", "9a:00", "10:00"),
		"missing minutes": window("MONDAY", "09", "10:00"),
		"hour overflow":   window("MONDAY", "24:00", "25:00"),
		"minute overflow": window("MONDAY", "09:60", "10:00"),
		"start after end": window("MONDAY", "18:00", "15:00"),
		"empty range":     window("MONDAY", "15:00", "15:00"),
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWindow(w)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidAvailability))
		})
	}
}

func TestNormalizeWindowsCanonicalises(t *testing.T) {
	out, err := NormalizeWindows([]models.AvailabilityWindow{window(" tuesday ", "8:05", "09:00")})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, window("TUESDAY", "08:05", "09:00"), out[0])

	_, err = NormalizeWindows([]models.AvailabilityWindow{window("TUESDAY", "10:00", "09:00")})
	require.Error(t, err)
}

func TestWindowsConflictDifferentDaysNeverConflict(t *testing.T) {
	days := []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}
	for _, a := range days {
		for _, b := range days {
			conflict, err := WindowsConflict(window(a, "00:00", "23:59"), window(b, "00:00", "23:59"))
			require.NoError(t, err)
			assert.Equal(t, a == b, conflict, "%s vs %s", a, b)
		}
	}
}

func TestWindowsConflictSameDay(t *testing.T) {
	conflict, err := WindowsConflict(window("MONDAY", "15:00", "18:00"), window("MONDAY", "16:00", "17:00"))
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = WindowsConflict(window("MONDAY", "15:00", "16:00"), window("MONDAY", "16:00", "17:00"))
	require.NoError(t, err)
	assert.False(t, conflict, "touching windows do not overlap")
}

func TestOverlapsIntersectsAndSkipsInvalid(t *testing.T) {
	shared := Overlaps(
		[]models.AvailabilityWindow{window("MONDAY", "15:00", "18:00"), window("FRIDAY", "bad", "10:00")},
		[]models.AvailabilityWindow{window("MONDAY", "16:00", "17:00"), window("FRIDAY", "09:00", "10:00")},
	)
	require.Len(t, shared, 1)
	assert.Equal(t, Window{Day: time.Monday, Start: 960, End: 1020}, shared[0])
}

func TestOverlapsMergesWindowsWithinOneSide(t *testing.T) {
	shared := Overlaps(
		[]models.AvailabilityWindow{
			window("MONDAY", "10:00", "11:00"),
			window("MONDAY", "09:00", "12:00"),
			window("MONDAY", "12:00", "13:00"),
		},
		[]models.AvailabilityWindow{window("MONDAY", "08:00", "14:00"), window("MONDAY", "10:30", "11:30")},
	)
	require.Len(t, shared, 1)
	assert.Equal(t, Window{Day: time.Monday, Start: 540, End: 780}, shared[0])
	assert.Equal(t, 240, shared[0].Minutes())
}
