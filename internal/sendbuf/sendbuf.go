// Package sendbuf implements the send-buffer ring described in spec
// §4.B: a per-connection ring of outgoing PDUs with a sent/unsent
// split and retransmission-window reconstruction.
//
// Grounded on the teacher's Session.SendQueue / RecoveryQueue /
// HandleNACK (source/protocol/raknet.go), generalized from RakNet's
// unconditional resend-on-NACK to RaSTA's already_sent bookkeeping and
// prepare_retransmission reconstruction, and on original_source's
// srsend_sr_send_buffer.c for the exact algorithm.
package sendbuf

import (
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
)

type entry struct {
	inUse       bool
	alreadySent bool
	pdu         *codec.PDU
	seq         uint32
	msgType     codec.MessageType
}

// ring is a single connection's send buffer: a fixed-capacity array
// used as a circular queue.
type ring struct {
	entries  []entry
	cap      int
	readIdx  int
	writeIdx int
	used     int
	notSent  int
}

func newRing(capacity int) *ring {
	return &ring{entries: make([]entry, capacity), cap: capacity}
}

func (r *ring) reset() {
	for i := range r.entries {
		r.entries[i] = entry{}
	}
	r.readIdx, r.writeIdx, r.used, r.notSent = 0, 0, 0, 0
}

// oldestIdx is the index of the oldest entry still held (the one
// remove_through would drop first).
func (r *ring) oldestIdx() int {
	return (r.writeIdx - r.used + r.cap) % r.cap
}

// Set manages one send buffer ring per connection plus a single
// scratch ring (shared across connections, since only one
// retransmission reconstruction runs at a time) used by
// PrepareRetransmission.
type Set struct {
	rings   []*ring
	scratch *ring
	nSend   int
}

// NewSet allocates nConn rings of capacity nSendMax, plus one scratch
// ring of the same capacity for retransmission reconstruction.
func NewSet(nConn, nSendMax int) *Set {
	s := &Set{rings: make([]*ring, nConn), nSend: nSendMax}
	for i := range s.rings {
		s.rings[i] = newRing(nSendMax)
	}
	s.scratch = newRing(nSendMax)
	return s
}

func (s *Set) Reset(cid int) { s.rings[cid].reset() }

// Add appends pdu as not-yet-sent. Returns SendBufferFull if the ring
// is at capacity.
func (s *Set) Add(cid int, pdu *codec.PDU) error {
	r := s.rings[cid]
	if r.used == r.cap {
		return raerr.New(raerr.SendBufferFull, "connection %d: send buffer full (cap=%d)", cid, r.cap)
	}
	r.entries[r.writeIdx] = entry{
		inUse:   true,
		pdu:     pdu,
		seq:     codec.GetSeq(pdu),
		msgType: codec.GetType(pdu),
	}
	r.writeIdx = (r.writeIdx + 1) % r.cap
	r.used++
	r.notSent++
	return nil
}

// ReadNext returns the oldest not-yet-sent PDU and marks it sent, or
// ok=false if every buffered entry has already been sent.
func (s *Set) ReadNext(cid int) (pdu *codec.PDU, ok bool) {
	r := s.rings[cid]
	if r.notSent == 0 {
		return nil, false
	}
	idx := r.readIdx
	e := &r.entries[idx]
	e.alreadySent = true
	r.readIdx = (r.readIdx + 1) % r.cap
	r.notSent--
	return e.pdu, true
}

// RemoveThrough drops already-sent entries up to and including the
// one whose sequence number equals confirmedSN, per spec §4.B.
func (s *Set) RemoveThrough(cid int, confirmedSN uint32) {
	r := s.rings[cid]
	for r.used > r.notSent {
		idx := r.oldestIdx()
		e := &r.entries[idx]
		if !e.alreadySent {
			break
		}
		diff := confirmedSN - e.seq
		if diff >= uint32(r.cap) {
			break
		}
		matched := e.seq == confirmedSN
		*e = entry{}
		r.used--
		if matched {
			break
		}
	}
}

// ContainsSN reports whether sn is present in the connection's send
// buffer (sent or not), used by Up/RetransRequest/RetransRunning to
// decide whether a RetrReq's requested sn is servable.
func (s *Set) ContainsSN(cid int, sn uint32) bool {
	r := s.rings[cid]
	idx := r.oldestIdx()
	for i := 0; i < r.used; i++ {
		if r.entries[idx].seq == sn {
			return true
		}
		idx = (idx + 1) % r.cap
	}
	return false
}

func (s *Set) GetFree(cid int) int { return s.rings[cid].cap - s.rings[cid].used }
func (s *Set) GetUsed(cid int) int { return s.rings[cid].used }
func (s *Set) GetPendingSend(cid int) int { return s.rings[cid].notSent }

// HeaderPrototype carries the fields PrepareRetransmission needs to
// mint fresh PDUs: sender/receiver identity, the confirmed timestamp
// to stamp on each emitted PDU, and the first fresh sequence number.
type HeaderPrototype struct {
	ReceiverID         uint32
	SenderID           uint32
	ConfirmedTimeStamp uint32
	NextSeq            uint32
}

// PrepareRetransmission reconstructs the retransmission window
// starting immediately after lastGoodSN, per spec §4.B's five-step
// algorithm: emit RetrResp, walk buffered entries reassigning fresh
// sequence numbers (re-emitting already-sent Data/RetrData as
// RetrData, carrying un-sent entries through to a Data/RetrReq
// boundary), and terminate with a Hb if no natural boundary was hit.
// Returns the next fresh sequence number the connection should use
// going forward.
func (s *Set) PrepareRetransmission(codec_ *codec.Codec, cid int, lastGoodSN uint32, proto HeaderPrototype) (newSNT uint32, err error) {
	r := s.rings[cid]
	scratch := s.scratch
	scratch.reset()

	nextSN := proto.NextSeq
	hc := func() codec.HeaderCreate {
		return codec.HeaderCreate{
			ReceiverID:         proto.ReceiverID,
			SenderID:           proto.SenderID,
			SequenceNumber:     nextSN,
			ConfirmedTimeStamp: proto.ConfirmedTimeStamp,
		}
	}

	appendScratch := func(pdu *codec.PDU) {
		scratch.entries[scratch.writeIdx] = entry{inUse: true, pdu: pdu, seq: nextSN, msgType: codec.GetType(pdu)}
		scratch.writeIdx = (scratch.writeIdx + 1) % scratch.cap
		scratch.used++
		scratch.notSent++
		nextSN++
	}

	// Step 1: RetrResp terminator that opens the retransmission.
	appendScratch(codec_.CreateRetrResp(hc()))

	sn := lastGoodSN
	retrEnd := false

	idx := r.oldestIdx()
	found := false
	for i := 0; i < r.used; i++ {
		if r.entries[idx].seq == sn+1 {
			found = true
			break
		}
		idx = (idx + 1) % r.cap
	}
	if !found {
		return 0, raerr.New(raerr.InvalidSequenceNumber, "connection %d: message after sn=%d not present in send buffer", cid, sn)
	}

	for i := 0; i < r.used; i++ {
		e := &r.entries[idx]
		if e.seq != sn+1 {
			idx = (idx + 1) % r.cap
			continue
		}

		switch {
		case e.alreadySent:
			if e.msgType == codec.TypeData || e.msgType == codec.TypeRetrData {
				payload := codec.GetPayload(e.pdu)
				pdu, perr := codec_.CreateRetrData(hc(), payload)
				if perr != nil {
					return 0, perr
				}
				appendScratch(pdu)
			}
			// else: drop (already sent, not a Data/RetrData payload).

		case !retrEnd:
			switch e.msgType {
			case codec.TypeData:
				payload := codec.GetPayload(e.pdu)
				pdu, perr := codec_.CreateData(hc(), payload)
				if perr != nil {
					return 0, perr
				}
				appendScratch(pdu)
				retrEnd = true
			case codec.TypeRetrData:
				payload := codec.GetPayload(e.pdu)
				pdu, perr := codec_.CreateRetrData(hc(), payload)
				if perr != nil {
					return 0, perr
				}
				appendScratch(pdu)
			case codec.TypeRetrReq:
				appendScratch(codec_.CreateHb(hc()))
				appendScratch(codec_.CreateRetrReq(hc()))
				retrEnd = true
			case codec.TypeHb:
				// dropped
			default:
				return 0, raerr.New(raerr.InternalError, "connection %d: unexpected buffered message type %s before retr end", cid, e.msgType)
			}

		default:
			// retr end already reached; not-yet-sent entries beyond
			// it stay queued for ordinary sending, so nothing to emit.
		}

		sn++
		idx = (idx + 1) % r.cap
	}

	if !retrEnd {
		appendScratch(codec_.CreateHb(hc()))
	}

	// Copy scratch back into the connection's buffer.
	r.reset()
	idx = scratch.oldestIdx()
	for i := 0; i < scratch.used; i++ {
		r.entries[r.writeIdx] = scratch.entries[idx]
		r.writeIdx = (r.writeIdx + 1) % r.cap
		r.used++
		r.notSent++
		idx = (idx + 1) % scratch.cap
	}

	return nextSN, nil
}
