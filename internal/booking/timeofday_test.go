package booking

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "00:00", want: 0},
		{in: "23:59", want: 1439},
		{in: "13:30", want: 810},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "garbage", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	assert.Equal(t, "09:00", TimeOfDay(540).String())
	assert.Equal(t, "00:05", TimeOfDay(5).String())
	assert.Equal(t, "16:30", TimeOfDay(990).String())
}

func TestTimeOfDayAt(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := TimeOfDay(630).At(date, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), got)
}

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(TimeOfDay(810))
	require.NoError(t, err)
	assert.Equal(t, `"13:30"`, string(data))

	var parsed TimeOfDay
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, TimeOfDay(810), parsed)

	assert.Error(t, json.Unmarshal([]byte(`123`), &parsed))
}

func TestScheduleDayValidate(t *testing.T) {
	bs := TimeOfDay(780) // 13:00
	be := TimeOfDay(840) // 14:00

	valid := ScheduleDay{Weekday: time.Monday, Start: 540, End: 1020, BreakStart: &bs, BreakEnd: &be, Active: true}
	assert.NoError(t, valid.Validate())

	backwards := ScheduleDay{Weekday: time.Monday, Start: 1020, End: 540}
	assert.Error(t, backwards.Validate())

	halfBreak := ScheduleDay{Weekday: time.Monday, Start: 540, End: 1020, BreakStart: &bs}
	assert.Error(t, halfBreak.Validate())

	outside := TimeOfDay(1080) // 18:00, past end
	breakOutside := ScheduleDay{Weekday: time.Monday, Start: 540, End: 1020, BreakStart: &bs, BreakEnd: &outside}
	assert.Error(t, breakOutside.Validate())
}

func TestVacationContains(t *testing.T) {
	v := Vacation{
		StartDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, v.Contains(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, v.Contains(time.Date(2026, 3, 11, 15, 4, 5, 0, time.UTC)))
	assert.True(t, v.Contains(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)))
	assert.False(t, v.Contains(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
	assert.False(t, v.Contains(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition(StatusConfirmed, StatusCompleted))
	assert.True(t, CanTransition(StatusConfirmed, StatusCancelled))
	assert.True(t, CanTransition(StatusConfirmed, StatusNoShow))

	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusPending, StatusNoShow))

	for _, terminal := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		assert.True(t, IsTerminal(terminal))
		for _, to := range []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow} {
			assert.False(t, CanTransition(terminal, to), "%s -> %s must be rejected", terminal, to)
		}
	}
}
