// Package recvbuf implements the receive-buffer ring described in
// spec §4.C: delivered Data/RetrData payloads awaiting an application
// ReadData call.
//
// Grounded on the teacher's Session.HandleDataPacket payload-delivery
// path (source/protocol/raknet.go) and original_source's
// srrece_sr_received_buffer.c.
package recvbuf

import "github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"

type ring struct {
	entries  [][]byte
	cap      int
	readIdx  int
	writeIdx int
	used     int
}

func newRing(capacity int) *ring {
	return &ring{entries: make([][]byte, capacity), cap: capacity}
}

func (r *ring) reset() {
	for i := range r.entries {
		r.entries[i] = nil
	}
	r.readIdx, r.writeIdx, r.used = 0, 0, 0
}

// Notifier is called every time a payload is queued, so the caller can
// fire the message_received(cid) application notification
// synchronously, per spec §4.C.
type Notifier interface {
	MessageReceived(cid int)
}

// Set manages one receive-buffer ring per connection.
type Set struct {
	rings    []*ring
	notifier Notifier
}

func NewSet(nConn, nSendMax int, notifier Notifier) *Set {
	s := &Set{rings: make([]*ring, nConn), notifier: notifier}
	for i := range s.rings {
		s.rings[i] = newRing(nSendMax)
	}
	return s
}

func (s *Set) Reset(cid int) { s.rings[cid].reset() }

// Add appends payload and notifies the application. The caller (the
// engine) is responsible for checking GetFree > 0 first; a full
// buffer here is an invariant violation, not an application error,
// since the receive pipeline gates on free space before accepting.
func (s *Set) Add(cid int, payload []byte) error {
	r := s.rings[cid]
	if r.used >= r.cap {
		return raerr.New(raerr.ReceiveBufferFull, "connection %d: receive buffer full (cap=%d)", cid, r.cap)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.entries[r.writeIdx] = cp
	r.writeIdx = (r.writeIdx + 1) % r.cap
	r.used++
	if s.notifier != nil {
		s.notifier.MessageReceived(cid)
	}
	return nil
}

// Read pops the oldest payload, or NoMessageReceived if empty.
func (s *Set) Read(cid int) ([]byte, error) {
	r := s.rings[cid]
	if r.used == 0 {
		return nil, raerr.New(raerr.NoMessageReceived, "connection %d: receive buffer empty", cid)
	}
	payload := r.entries[r.readIdx]
	r.entries[r.readIdx] = nil
	r.readIdx = (r.readIdx + 1) % r.cap
	r.used--
	return payload, nil
}

// PeekNextSize returns the size of the oldest queued payload, or 0 if
// empty.
func (s *Set) PeekNextSize(cid int) uint16 {
	r := s.rings[cid]
	if r.used == 0 {
		return 0
	}
	return uint16(len(r.entries[r.readIdx]))
}

func (s *Set) GetFree(cid int) int { return s.rings[cid].cap - s.rings[cid].used }
func (s *Set) GetUsed(cid int) int { return s.rings[cid].used }
