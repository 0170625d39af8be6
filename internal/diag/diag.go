// Package diag implements the per-connection diagnostic counters and
// timing histograms described in spec §4.D, plus an optional
// Prometheus exposition of the same data.
//
// Grounded on original_source's srdia_sr_diagnostics.c for the exact
// counter/bin semantics, and on
// runZeroInc-sockstats/pkg/exporter.TCPInfoCollector /
// runZeroInc-conniver/pkg/exporter for the Describe/Collect shape used
// to expose it as a prometheus.Collector.
package diag

import (
	"github.com/sirupsen/logrus"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
)

const histogramBins = 5

// Counters holds the five error counters of spec §4.D, each wrapping
// u32 (modelled here as uint32, matching the wire field widths they
// count against).
type Counters struct {
	ECSafety  uint32
	ECAddress uint32
	ECType    uint32
	ECSN      uint32
	ECCSN     uint32
}

// Intervals are the four strictly-ascending bin boundaries that
// partition [0, TMax] into five bins, per spec §3/§4.D.
type Intervals [4]uint32

// AreIntervalsValid implements spec §4.D's
// are_intervals_valid(t_max, [I1..I4]).
func AreIntervalsValid(tMax uint32, iv Intervals) bool {
	return iv[0] > 0 && iv[0] < iv[1] && iv[1] < iv[2] && iv[2] < iv[3] && iv[3] < tMax
}

func bin(iv Intervals, v uint32) int {
	switch {
	case v <= iv[0]:
		return 0
	case v <= iv[1]:
		return 1
	case v <= iv[2]:
		return 2
	case v <= iv[3]:
		return 3
	default:
		return 4
	}
}

// ConnectionDiagnosticData is the notification payload emitted when a
// diagnostic window closes, per sraty_ConnectionDiagnosticData.
type ConnectionDiagnosticData struct {
	ConnectionID       int
	Counters           Counters
	TRtdDistribution   [histogramBins]uint32
	TAliveDistribution [histogramBins]uint32
}

// Notifier receives the diagnostic notification when a window closes.
type Notifier interface {
	SrDiagnosticNotification(data ConnectionDiagnosticData)
}

type connState struct {
	counters     Counters
	tRtd         [histogramBins]uint32
	tAlive       [histogramBins]uint32
	messageCount uint32
}

// Set manages one diagnostics state per connection.
type Set struct {
	states      []connState
	last        []ConnectionDiagnosticData
	intervals   Intervals
	tMax        uint32
	nDiagWindow uint32
	notifier    Notifier
	log         *logrus.Entry
}

func NewSet(nConn int, intervals Intervals, tMax, nDiagWindow uint32, notifier Notifier, log *logrus.Entry) *Set {
	return &Set{
		states:      make([]connState, nConn),
		last:        make([]ConnectionDiagnosticData, nConn),
		intervals:   intervals,
		tMax:        tMax,
		nDiagWindow: nDiagWindow,
		notifier:    notifier,
		log:         log,
	}
}

// Snapshot returns the most recently closed diagnostic window for
// every connection, for Prometheus scrape-time collection (which must
// not mutate state, unlike SendNotification's reset-on-emit).
func (s *Set) Snapshot() []ConnectionDiagnosticData {
	out := make([]ConnectionDiagnosticData, len(s.last))
	copy(out, s.last)
	return out
}

func (s *Set) Reset(cid int) { s.states[cid] = connState{} }

func (s *Set) IncECSafety(cid int)  { s.states[cid].counters.ECSafety++ }
func (s *Set) IncECAddress(cid int) { s.states[cid].counters.ECAddress++ }
func (s *Set) IncECType(cid int)    { s.states[cid].counters.ECType++ }
func (s *Set) IncECSN(cid int)      { s.states[cid].counters.ECSN++ }
func (s *Set) IncECCSN(cid int)     { s.states[cid].counters.ECCSN++ }

func (s *Set) Counters(cid int) Counters { return s.states[cid].counters }

// Update records one timeout-relevant receive's T_rtd and T_alive
// measurements, per spec §4.D. Both must be <= TMax, which the engine
// guarantees before calling this (process_received_message only calls
// Update when t_rtd <= t_max held).
func (s *Set) Update(cid int, tRtd, tAlive uint32) error {
	if tRtd > s.tMax || tAlive > s.tMax {
		return raerr.New(raerr.InternalError, "connection %d: t_rtd=%d/t_alive=%d exceed t_max=%d", cid, tRtd, tAlive, s.tMax)
	}
	st := &s.states[cid]
	st.tRtd[bin(s.intervals, tRtd)]++
	st.tAlive[bin(s.intervals, tAlive)]++
	st.messageCount++

	if s.log != nil {
		s.log.WithFields(logrus.Fields{"connection_id": cid, "t_rtd": tRtd, "t_alive": tAlive}).Trace("diagnostic sample recorded")
	}

	if st.messageCount >= s.nDiagWindow {
		s.sendNotification(cid)
	}
	return nil
}

// Flush forces the current (possibly partial) window to be emitted,
// used when a connection closes and the window would otherwise be
// discarded silently.
func (s *Set) Flush(cid int) { s.sendNotification(cid) }

// sendNotification emits the current window's ConnectionDiagnosticData
// and resets counters/histograms for that connection.
func (s *Set) sendNotification(cid int) {
	st := &s.states[cid]
	data := ConnectionDiagnosticData{
		ConnectionID:       cid,
		Counters:           st.counters,
		TRtdDistribution:   st.tRtd,
		TAliveDistribution: st.tAlive,
	}
	s.last[cid] = data
	if s.notifier != nil {
		s.notifier.SrDiagnosticNotification(data)
	}
	*st = connState{}
}
