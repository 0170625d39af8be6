package engine

import (
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// The methods below implement statemachine.Actuator: every side
// effect and guard predicate the dispatch table in
// internal/statemachine needs, grounded on original_source's
// srcor_sr_core.c action helpers (init_rasta_conn_data, send_*_msg,
// close connection) called from srstm_sr_state_machine.c's table.

func (e *Engine) IsServer(cid int) bool { return e.conns[cid].isServer() }

func (e *Engine) VersionAccepted(cid int) bool {
	c := &e.conns[cid]
	if c.input.raw == nil {
		return false
	}
	version, _ := codec.GetConnData(c.input.raw)
	return codec.VersionAccepted(version)
}

func (e *Engine) SequenceInSeq(cid int) bool { return e.conns[cid].input.sequenceInSeq }
func (e *Engine) CtsInSeq(cid int) bool      { return e.conns[cid].input.confirmedTSInSeq }

// RetrSNAvailable reports whether the message immediately following
// the requested sequence number is present in the send buffer, the
// precondition PrepareRetransmission enforces (spec §4.B).
func (e *Engine) RetrSNAvailable(cid int) bool {
	c := &e.conns[cid]
	return e.send.ContainsSN(cid, c.input.header.ConfirmedSequenceNumber+1)
}

func (e *Engine) InitConnectionState(cid int) {
	c := &e.conns[cid]
	now := e.sysAdapter.GetTimerValue()

	*c = connection{cfg: c.cfg, state: c.state}
	c.snT = e.sysAdapter.GetRandomU32()
	c.timerTI = e.cfg.TMax
	c.csT = 0
	if c.isServer() {
		c.ctsR = 0
	} else {
		c.ctsR = now
	}
	c.oppositeNSendMax = e.cfg.NSendMax

	e.send.Reset(cid)
	e.recv.Reset(cid)
	e.diagnostics.Reset(cid)
	e.adapter.OpenRedundancyChannel(uint32(cid))
}

func (e *Engine) header(cid int, seq uint32) codec.HeaderCreate {
	c := &e.conns[cid]
	return codec.HeaderCreate{ReceiverID: c.cfg.ReceiverID, SenderID: c.cfg.SenderID, SequenceNumber: seq, ConfirmedTimeStamp: c.ctsR}
}

func (e *Engine) enqueue(cid int, pdu *codec.PDU) {
	c := &e.conns[cid]
	if err := e.send.Add(cid, pdu); err != nil {
		e.fatal(raerr.SendBufferFull, err)
		return
	}
	c.snT++
	e.sendPending(cid)
}

func (e *Engine) EmitConnReq(cid int) {
	c := &e.conns[cid]
	pdu := e.codec.CreateConnReq(e.header(cid, c.snT), e.cfg.NSendMax)
	e.enqueue(cid, pdu)
}

func (e *Engine) EmitConnResp(cid int) {
	c := &e.conns[cid]
	pdu := e.codec.CreateConnResp(e.header(cid, c.snT), e.cfg.NSendMax)
	e.enqueue(cid, pdu)
}

func (e *Engine) EmitHb(cid int) {
	c := &e.conns[cid]
	pdu := e.codec.CreateHb(e.header(cid, c.snT))
	e.enqueue(cid, pdu)
}

func (e *Engine) EmitRetrReq(cid int) {
	c := &e.conns[cid]
	pdu := e.codec.CreateRetrReq(e.header(cid, c.snT))
	e.enqueue(cid, pdu)
}

// EmitDataMsg implements send_data_msg: it builds a Data PDU from the
// staged temp_send_buffer payload, per spec §4.E's data flow diagram.
func (e *Engine) EmitDataMsg(cid int) {
	c := &e.conns[cid]
	if !c.temp.inUse {
		return
	}
	pdu, err := e.codec.CreateData(e.header(cid, c.snT), c.temp.payload)
	if err != nil {
		e.fatal(raerr.InternalError, err)
		return
	}
	c.temp = tempSendBuffer{}
	e.enqueue(cid, pdu)
}

func (e *Engine) SetCSRFromPDU(cid int) {
	c := &e.conns[cid]
	c.csR = c.input.header.ConfirmedSequenceNumber
}

func (e *Engine) DiscardInputBuffer(cid int) { e.conns[cid].input = inputBuffer{} }

func (e *Engine) ForceCloseRedundancyChannel(cid int) {
	e.adapter.CloseRedundancyChannel(uint32(cid))
}

// Close implements action [1] of spec §4.F: emit DiscReq directly
// (bypassing the send buffer), clear the send buffer, close the
// redundancy channel, flush diagnostics, and notify the application.
func (e *Engine) Close(cid int, reason statemachine.DisconnectReason) {
	c := &e.conns[cid]
	if c.input.inUse {
		c.csT = c.input.header.SequenceNumber
	}
	detailed := c.detailedDisconnectReason

	pdu := e.codec.CreateDiscReq(e.header(cid, c.snT), detailed, uint16(reason))
	c.snT++
	now := e.sysAdapter.GetTimerValue()
	e.codec.UpdateHeader(pdu, codec.HeaderUpdate{ConfirmedSequenceNumber: c.csT, TimeStamp: now})
	e.adapter.SendMessage(uint32(cid), pdu.Bytes)

	e.send.Reset(cid)
	e.adapter.CloseRedundancyChannel(uint32(cid))
	e.diagnostics.Flush(cid)

	c.input = inputBuffer{}
	c.state = statemachine.Closed
	e.notifyStateChange(cid, statemachine.Closed, reason, detailed)
}

// ClosePeer handles a peer-initiated DiscReq: the peer has already
// sent its own DiscReq, so no reciprocal DiscReq is emitted, matching
// spec §4.F's terser "close redundancy channel, go Closed" wording for
// DiscReqRx cells.
func (e *Engine) ClosePeer(cid int) {
	c := &e.conns[cid]
	var detailed uint16
	if c.input.inUse && c.input.raw != nil {
		detailed, _ = codec.GetDiscData(c.input.raw)
	}

	e.send.Reset(cid)
	e.adapter.CloseRedundancyChannel(uint32(cid))
	e.diagnostics.Flush(cid)

	c.detailedDisconnectReason = detailed
	c.input = inputBuffer{}
	c.state = statemachine.Closed
	e.notifyStateChange(cid, statemachine.Closed, statemachine.PeerRequested, detailed)
}

func (e *Engine) SetState(cid int, s statemachine.State) {
	c := &e.conns[cid]
	c.state = s
	reason := statemachine.NotInUse
	if s == statemachine.Closed {
		reason = statemachine.NotInUse // non-action[1] forced close; no specific reason applies
	}
	e.notifyStateChange(cid, s, reason, 0)
}

func (e *Engine) notifyStateChange(cid int, s statemachine.State, reason statemachine.DisconnectReason, detailed uint16) {
	c := &e.conns[cid]
	e.notifier.ConnectionStateNotification(cid, s, e.send.GetUsed(cid), int(c.oppositeNSendMax), reason, detailed)
}
