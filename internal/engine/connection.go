package engine

import (
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// inputBuffer stashes one validated, not-yet-processed received PDU,
// per spec §3's input_buffer.
type inputBuffer struct {
	inUse  bool
	header codec.Header
	raw    *codec.PDU
	event  statemachine.Event

	sequenceInSeq      bool
	confirmedTSInSeq   bool
}

// tempSendBuffer stashes one application payload between send_data and
// the state machine's SendData handling, per spec §3's temp_send_buffer.
type tempSendBuffer struct {
	inUse   bool
	payload []byte
}

// connection is the per-connection mutable state of spec §3, created
// by Open and cleared on Close.
type connection struct {
	cfg ConnectionConfig

	state statemachine.State

	snT, snR, csT, csTLastSent, csR uint32
	tsR, ctsR, tsTx                 uint32

	oppositeNSendMax uint16

	detailedDisconnectReason uint16

	receivedPending bool

	input inputBuffer
	temp  tempSendBuffer

	timerTI          uint32
	tRtd, tAlive     uint32
}

func (c *connection) isServer() bool { return c.cfg.IsServer() }
