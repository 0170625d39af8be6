package engine

import (
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/sendbuf"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

func eventForType(t codec.MessageType) statemachine.Event {
	switch t {
	case codec.TypeConnReq:
		return statemachine.ConnReqRx
	case codec.TypeConnResp:
		return statemachine.ConnRespRx
	case codec.TypeRetrReq:
		return statemachine.RetrReqRx
	case codec.TypeRetrResp:
		return statemachine.RetrRespRx
	case codec.TypeDiscReq:
		return statemachine.DiscReqRx
	case codec.TypeHb:
		return statemachine.HbRx
	case codec.TypeData:
		return statemachine.DataRx
	default:
		return statemachine.RetrDataRx
	}
}

func sequenceNumberRangeAccepted(t codec.MessageType, snPDU, snR uint32, nSendMax uint16) bool {
	switch t {
	case codec.TypeConnReq, codec.TypeConnResp, codec.TypeRetrResp:
		return true
	default:
		return (snPDU - snR) <= 10*uint32(nSendMax)
	}
}

func confirmedSequenceIntegrityOK(t codec.MessageType, csPDU, snT, csR uint32) bool {
	switch t {
	case codec.TypeConnReq:
		return csPDU == 0
	case codec.TypeConnResp:
		return csPDU == snT-1
	default:
		return (csPDU - csR) <= (snT - (csR - 1))
	}
}

// receiveMessage implements spec §4.E.1: reads one PDU from the
// redundancy adapter and runs it through the validation pipeline.
// accepted is false whenever the message was dropped (or none was
// available); the caller must check conn.receivedPending separately
// to distinguish "nothing left to read" from "dropped, try again".
func (e *Engine) receiveMessage(cid int) (ev statemachine.Event, accepted bool) {
	c := &e.conns[cid]

	raw, ok := e.adapter.ReadMessage(uint32(cid))
	if !ok {
		c.receivedPending = false
		return 0, false
	}
	pdu := &codec.PDU{Bytes: raw}

	switch e.codec.Check(pdu) {
	case codec.CheckInvalidSize:
		return 0, false
	case codec.CheckInvalidMd4:
		e.diagnostics.IncECSafety(cid)
		return 0, false
	case codec.CheckInvalidType:
		e.diagnostics.IncECType(cid)
		return 0, false
	}

	h := codec.GetHeader(pdu)

	if h.ReceiverID != c.cfg.SenderID || h.SenderID != c.cfg.ReceiverID {
		e.diagnostics.IncECAddress(cid)
		return 0, false
	}

	if !sequenceNumberRangeAccepted(h.Type, h.SequenceNumber, c.snR, e.cfg.NSendMax) {
		return 0, false
	}

	if !confirmedSequenceIntegrityOK(h.Type, h.ConfirmedSequenceNumber, c.snT, c.csR) {
		e.diagnostics.IncECCSN(cid)
		return 0, false
	}

	if h.Type.IsTimeoutRelevant() {
		if (h.TimeStamp - c.tsR) >= e.cfg.TMax {
			return 0, false
		}
	}

	sequenceInSeq := true
	switch h.Type {
	case codec.TypeRetrReq, codec.TypeHb, codec.TypeData, codec.TypeRetrData:
		sequenceInSeq = h.SequenceNumber == c.snR
		if !sequenceInSeq {
			e.diagnostics.IncECSN(cid)
		}
	}

	confirmedTSInSeq := true
	switch h.Type {
	case codec.TypeHb, codec.TypeData, codec.TypeRetrData:
		confirmedTSInSeq = (h.ConfirmedTimeStamp - c.ctsR) < e.cfg.TMax
	}

	ev = eventForType(h.Type)
	c.input = inputBuffer{
		inUse:            true,
		header:           h,
		raw:              pdu,
		event:            ev,
		sequenceInSeq:    sequenceInSeq,
		confirmedTSInSeq: confirmedTSInSeq,
	}
	return ev, true
}

// ProcessReceivedMessage implements spec §4.E.2. It is called by the
// state machine on every [3] Regular processing transition.
func (e *Engine) ProcessReceivedMessage(cid int) bool {
	c := &e.conns[cid]
	in := c.input
	h := in.header
	now := e.sysAdapter.GetTimerValue()

	if h.Type.IsTimeoutRelevant() {
		gran := e.sysAdapter.GetTimerGranularity()
		tRtd := (now + gran) - h.ConfirmedTimeStamp
		if tRtd <= e.cfg.TMax {
			c.timerTI = e.cfg.TMax - tRtd
		} else {
			c.timerTI = 0
			return false
		}
		c.tRtd = tRtd
		c.tAlive = now - c.ctsR
	}

	c.snR = h.SequenceNumber + 1
	c.csT = h.SequenceNumber

	if h.ConfirmedSequenceNumber != c.csR {
		c.csR = h.ConfirmedSequenceNumber
		if h.Type != codec.TypeConnReq {
			e.send.RemoveThrough(cid, c.csR)
		}
	}
	c.tsR = h.TimeStamp
	if h.Type.IsTimeoutRelevant() {
		c.ctsR = h.ConfirmedTimeStamp
	}
	if h.Type == codec.TypeConnReq {
		c.csR = c.snT - 1
		c.ctsR = now
	}

	if h.Type == codec.TypeConnReq || h.Type == codec.TypeConnResp {
		_, peerNSendMax := codec.GetConnData(in.raw)
		c.oppositeNSendMax = peerNSendMax
	}

	if h.Type == codec.TypeData || h.Type == codec.TypeRetrData {
		payload := codec.GetPayload(in.raw)
		if err := e.recv.Add(cid, payload); err != nil {
			e.fatal(raerr.ReceiveBufferFull, err)
		}
	}

	switch h.Type {
	case codec.TypeHb, codec.TypeRetrResp, codec.TypeData, codec.TypeRetrData:
		if (c.csT - c.csTLastSent) >= uint32(e.cfg.MWA) {
			if e.send.GetPendingSend(cid) > 0 {
				e.sendPending(cid)
			} else {
				e.EmitHb(cid)
			}
		}
	}

	if h.Type.IsTimeoutRelevant() {
		if err := e.diagnostics.Update(cid, c.tRtd, c.tAlive); err != nil {
			e.fatal(raerr.InternalError, err)
		}
	}

	c.input = inputBuffer{}
	return true
}

// sendPending implements spec §4.E.3.
func (e *Engine) sendPending(cid int) {
	c := &e.conns[cid]
	for e.send.GetPendingSend(cid) > 0 && (e.send.GetUsed(cid)-e.send.GetPendingSend(cid)) < int(c.oppositeNSendMax) {
		pdu, ok := e.send.ReadNext(cid)
		if !ok {
			return
		}
		now := e.sysAdapter.GetTimerValue()
		c.tsTx = now
		if codec.GetType(pdu) == codec.TypeConnReq {
			c.csT = 0
		}
		c.csTLastSent = c.csT
		e.codec.UpdateHeader(pdu, codec.HeaderUpdate{ConfirmedSequenceNumber: c.csT, TimeStamp: c.tsTx})
		e.adapter.SendMessage(uint32(cid), pdu.Bytes)
	}
}

func (e *Engine) isMessageTimeout(cid int, now uint32) bool {
	c := &e.conns[cid]
	return (now - c.ctsR) > c.timerTI
}

func (e *Engine) isHeartbeatInterval(cid int, now uint32) bool {
	c := &e.conns[cid]
	return (now - c.tsTx) >= e.cfg.TH
}

// HandleRetrReq implements spec §4.E.6, the statemachine.Actuator hook
// called on every RetrReqRx cell that must rebuild the retransmission
// window.
func (e *Engine) HandleRetrReq(cid int) {
	c := &e.conns[cid]
	proto := sendbuf.HeaderPrototype{
		ReceiverID:         c.cfg.ReceiverID,
		SenderID:           c.cfg.SenderID,
		ConfirmedTimeStamp: c.ctsR,
		NextSeq:            c.snT,
	}
	newSN, err := e.send.PrepareRetransmission(e.codec, cid, c.csR, proto)
	if err != nil {
		e.fatal(raerr.InvalidSequenceNumber, err)
		return
	}
	c.snT = newSN
}
