// Package demo provides an in-memory redundancy/system adapter pair
// and a logging application notifier, used by the start command to
// demonstrate two RaSTA stacks establishing a connection and
// exchanging data without any real network transport.
//
// Grounded on the teacher's source/server.Server driving
// source/protocol's packet exchange over a concrete transport; here
// the transport is a pair of mutex-guarded in-memory queues instead of
// a UDP socket, since the demo has no external network to bind to.
package demo

import (
	"math/rand"
	"sync"
	"time"
)

// Loopback connects two RedundancyAdapter endpoints back to back: a
// message sent on one side's channel becomes available for the other
// side's ReadMessage, and vice versa. Each side owns exactly one
// redundancy channel id (0), matching a single configured connection.
type Loopback struct {
	mu      sync.Mutex
	aToB    [][]byte
	bToA    [][]byte
	aOpen   bool
	bOpen   bool
	onARecv func()
	onBRecv func()
}

// NewLoopback builds an unopened channel pair.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Side returns the RedundancyAdapter view used by one of the two
// stacks. notifyReceived is called synchronously after a message is
// enqueued for this side, so the caller can mark MessageReceivedNotification.
func (l *Loopback) Side(isA bool, notifyReceived func()) *loopbackSide {
	l.mu.Lock()
	if isA {
		l.onARecv = notifyReceived
	} else {
		l.onBRecv = notifyReceived
	}
	l.mu.Unlock()
	return &loopbackSide{l: l, isA: isA}
}

type loopbackSide struct {
	l    *Loopback
	isA  bool
}

func (s *loopbackSide) OpenRedundancyChannel(channelID uint32) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if s.isA {
		s.l.aOpen = true
	} else {
		s.l.bOpen = true
	}
}

func (s *loopbackSide) CloseRedundancyChannel(channelID uint32) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if s.isA {
		s.l.aOpen = false
	} else {
		s.l.bOpen = false
	}
}

func (s *loopbackSide) SendMessage(channelID uint32, bytes []byte) {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)

	s.l.mu.Lock()
	var notify func()
	if s.isA {
		s.l.aToB = append(s.l.aToB, cp)
		notify = s.l.onBRecv
	} else {
		s.l.bToA = append(s.l.bToA, cp)
		notify = s.l.onARecv
	}
	s.l.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (s *loopbackSide) ReadMessage(channelID uint32) ([]byte, bool) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	if s.isA {
		if len(s.l.bToA) == 0 {
			return nil, false
		}
		msg := s.l.bToA[0]
		s.l.bToA = s.l.bToA[1:]
		return msg, true
	}
	if len(s.l.aToB) == 0 {
		return nil, false
	}
	msg := s.l.aToB[0]
	s.l.aToB = s.l.aToB[1:]
	return msg, true
}

// SystemClock is a SystemAdapter backed by the wall clock, used since
// the demo has no hardware timer to sample.
type SystemClock struct {
	start time.Time
	fatal func(kind string)
}

// NewSystemClock builds a SystemAdapter whose GetTimerValue reports
// milliseconds since construction, matching spec §3's millisecond
// timer granularity.
func NewSystemClock(fatal func(kind string)) *SystemClock {
	return &SystemClock{start: time.Now(), fatal: fatal}
}

func (c *SystemClock) GetTimerValue() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

func (c *SystemClock) GetTimerGranularity() uint32 { return 1 }

func (c *SystemClock) GetRandomU32() uint32 { return rand.Uint32() }

func (c *SystemClock) FatalError(kind string) {
	if c.fatal != nil {
		c.fatal(kind)
	}
}
