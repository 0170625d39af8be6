package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct{ received []ConnectionDiagnosticData }

func (n *recordingNotifier) SrDiagnosticNotification(data ConnectionDiagnosticData) {
	n.received = append(n.received, data)
}

func TestAreIntervalsValid(t *testing.T) {
	assert.True(t, AreIntervalsValid(1000, Intervals{100, 300, 600, 900}))
	assert.False(t, AreIntervalsValid(1000, Intervals{0, 300, 600, 900}))   // I1 must be > 0
	assert.False(t, AreIntervalsValid(1000, Intervals{300, 100, 600, 900})) // not ascending
	assert.False(t, AreIntervalsValid(1000, Intervals{100, 300, 600, 1000})) // I4 must be < t_max
}

func TestIncrementers(t *testing.T) {
	s := NewSet(1, Intervals{100, 300, 600, 900}, 1000, 100, nil, nil)
	s.IncECSafety(0)
	s.IncECSafety(0)
	s.IncECAddress(0)
	s.IncECType(0)
	s.IncECSN(0)
	s.IncECCSN(0)

	c := s.Counters(0)
	assert.Equal(t, uint32(2), c.ECSafety)
	assert.Equal(t, uint32(1), c.ECAddress)
	assert.Equal(t, uint32(1), c.ECType)
	assert.Equal(t, uint32(1), c.ECSN)
	assert.Equal(t, uint32(1), c.ECCSN)
}

func TestUpdateBinsIntoHistogram(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewSet(1, Intervals{100, 300, 600, 900}, 1000, 100, notifier, nil)
	require.NoError(t, s.Update(0, 50, 250))
	s.Flush(0)
	require.Len(t, notifier.received, 1)
	assert.Equal(t, [histogramBins]uint32{1, 0, 0, 0, 0}, notifier.received[0].TRtdDistribution)
	assert.Equal(t, [histogramBins]uint32{0, 1, 0, 0, 0}, notifier.received[0].TAliveDistribution)
}

func TestUpdateRejectsValuesAboveTMax(t *testing.T) {
	s := NewSet(1, Intervals{100, 300, 600, 900}, 1000, 100, nil, nil)
	assert.Error(t, s.Update(0, 1001, 10))
}

func TestWindowRolloverEmitsNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewSet(1, Intervals{100, 300, 600, 900}, 1000, 3, notifier, nil)
	s.IncECSafety(0)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(0, 10, 10))
	}
	require.Len(t, notifier.received, 1)
	assert.Equal(t, uint32(0), s.Counters(0).ECSafety) // counters reset after window closes
}

func TestFlushForcesPartialWindow(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewSet(1, Intervals{100, 300, 600, 900}, 1000, 100, notifier, nil)
	require.NoError(t, s.Update(0, 10, 10))
	s.Flush(0)
	require.Len(t, notifier.received, 1)
}

func TestSnapshotReturnsLastClosedWindow(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewSet(2, Intervals{100, 300, 600, 900}, 1000, 1, notifier, nil)
	require.NoError(t, s.Update(1, 10, 10))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1, snap[1].ConnectionID)
}
