package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationMetrics_Record(t *testing.T) {
	var om OperationMetrics

	om.Record(10*time.Millisecond, outcomeSuccess)
	om.Record(20*time.Millisecond, outcomeSuccess)
	om.Record(30*time.Millisecond, outcomeConflict)
	om.Record(40*time.Millisecond, outcomeError)

	assert.EqualValues(t, 4, om.Total.Load())
	assert.EqualValues(t, 2, om.Success.Load())
	assert.EqualValues(t, 1, om.Conflict.Load())
	assert.EqualValues(t, 1, om.Error.Load())
}

func TestOperationMetrics_Stats(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var om OperationMetrics
		assert.Equal(t, LatencyStats{}, om.Stats())
	})

	t.Run("percentiles over unsorted input", func(t *testing.T) {
		var om OperationMetrics
		for i := 100; i >= 1; i-- {
			om.Record(time.Duration(i)*time.Millisecond, outcomeSuccess)
		}

		st := om.Stats()
		assert.Equal(t, time.Millisecond, st.Min)
		assert.Equal(t, 100*time.Millisecond, st.Max)
		assert.Equal(t, 51*time.Millisecond, st.P50)
		assert.Equal(t, 96*time.Millisecond, st.P95)
		assert.Equal(t, 50500*time.Microsecond, st.Avg)
	})

	t.Run("single sample", func(t *testing.T) {
		var om OperationMetrics
		om.Record(7*time.Millisecond, outcomeSuccess)

		st := om.Stats()
		assert.Equal(t, 7*time.Millisecond, st.P50)
		assert.Equal(t, 7*time.Millisecond, st.P95)
	})
}

func TestWriteReport(t *testing.T) {
	var m Metrics
	m.Booking.Record(5*time.Millisecond, outcomeSuccess)
	m.Booking.Record(5*time.Millisecond, outcomeConflict)
	m.Unassigned.Add(1)

	var buf bytes.Buffer
	writeReport(&buf, SimConfig{Duration: time.Second, Workers: 2, Days: 1}, &m)

	out := buf.String()
	require.Contains(t, out, "SIMULATION REPORT")
	assert.Contains(t, out, "Booking:")
	assert.Contains(t, out, "Conflicts: 1 (50.0%)")
	assert.Contains(t, out, "Booked without a mechanic: 1")
	assert.NotContains(t, out, "Status update:")
}

func TestSlotGrid(t *testing.T) {
	times := slotTimes()

	require.NotEmpty(t, times)
	assert.Equal(t, "08:00", times[0])
	assert.Equal(t, "16:00", times[len(times)-1])
	assert.Len(t, times, 17)
}

func TestBookingDates_SkipsSundays(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

	dates := bookingDates(saturday, 3)

	assert.Equal(t, []string{"2026-03-09", "2026-03-10", "2026-03-11"}, dates)
}
