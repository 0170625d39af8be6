// Package statemachine implements the seven-state, thirteen-event
// dispatch table described in spec §4.F: Closed, Down, Start, Up,
// RetransRequest, RetransRunning, plus the initial-only NotInitialized.
//
// Grounded on original_source's srstm_sr_state_machine.c, which drives
// the same table through a function-pointer array indexed by
// [state][event]; here the table is expressed as Go switches over the
// two enums, and the per-cell side effects are delegated to an
// Actuator the engine implements, mirroring the teacher's separation
// between dispatch (source/protocol/raknet.go's Session state checks)
// and the effectful handlers it calls into.
package statemachine

// State is one of the connection lifecycle states of spec §4.F.
type State int

const (
	NotInitialized State = iota
	Closed
	Down
	Start
	Up
	RetransRequest
	RetransRunning
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "NotInitialized"
	case Closed:
		return "Closed"
	case Down:
		return "Down"
	case Start:
		return "Start"
	case Up:
		return "Up"
	case RetransRequest:
		return "RetransRequest"
	case RetransRunning:
		return "RetransRunning"
	default:
		return "State(?)"
	}
}

// Event is one of the thirteen events the table dispatches on.
type Event int

const (
	Open Event = iota
	Close
	SendData
	ConnReqRx
	ConnRespRx
	RetrReqRx
	RetrRespRx
	DiscReqRx
	HbRx
	DataRx
	RetrDataRx
	SendHb
	Timeout
)

func (e Event) String() string {
	names := [...]string{
		"Open", "Close", "SendData", "ConnReqRx", "ConnRespRx", "RetrReqRx",
		"RetrRespRx", "DiscReqRx", "HbRx", "DataRx", "RetrDataRx", "SendHb", "Timeout",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Event(?)"
}

// DisconnectReason is the generic reason code carried by a
// connection_state_notification whose new_state is Closed.
type DisconnectReason int

const (
	NotInUse DisconnectReason = iota
	UserRequest
	ProtocolVersionError
	UnexpectedMessage
	ProtocolSequenceError
	SequenceNumberError
	RetransmissionFailed
	ReasonTimeout
	ServiceNotAllowed
	PeerRequested // the peer sent a DiscReq; only its detailed reason is passed on
)

// Actuator is everything the dispatch table needs from the engine: the
// guard predicates that pick a cell's branch, and the actions that
// cell's branch performs. Every method operates on the connection
// identified by cid; the table itself holds no per-connection state.
type Actuator interface {
	// Guards
	IsServer(cid int) bool
	VersionAccepted(cid int) bool
	SequenceInSeq(cid int) bool
	CtsInSeq(cid int) bool
	RetrSNAvailable(cid int) bool

	// Actions
	InitConnectionState(cid int)
	EmitConnReq(cid int)
	EmitConnResp(cid int)
	EmitHb(cid int)
	EmitRetrReq(cid int)
	EmitDataMsg(cid int)
	ProcessReceivedMessage(cid int) bool
	HandleRetrReq(cid int)
	SetCSRFromPDU(cid int)
	DiscardInputBuffer(cid int)
	ForceCloseRedundancyChannel(cid int)
	Close(cid int, reason DisconnectReason)
	ClosePeer(cid int)
	SetState(cid int, s State)
}

// Dispatch runs one (state, event) cell of the table against a, and
// returns the resulting state (equal to the input state when the cell
// is [2] Ignore or a guard kept the connection in place).
func Dispatch(a Actuator, cid int, state State, event Event) State {
	switch state {
	case Closed:
		return dispatchClosed(a, cid, event)
	case Down:
		return dispatchDown(a, cid, event)
	case Start:
		return dispatchStart(a, cid, event)
	case Up:
		return dispatchUp(a, cid, event)
	case RetransRequest:
		return dispatchRetransRequest(a, cid, event)
	case RetransRunning:
		return dispatchRetransRunning(a, cid, event)
	default:
		return state
	}
}

func dispatchClosed(a Actuator, cid int, event Event) State {
	if event != Open {
		return Closed // [2] Ignore every event but Open
	}
	a.InitConnectionState(cid)
	if a.IsServer(cid) {
		a.SetState(cid, Down)
		return Down
	}
	a.EmitConnReq(cid)
	a.SetState(cid, Start)
	return Start
}

func dispatchDown(a Actuator, cid int, event Event) State {
	switch event {
	case Open, Close, SendData:
		a.ForceCloseRedundancyChannel(cid)
		a.SetState(cid, Closed)
		return Closed
	case ConnReqRx:
		if !a.VersionAccepted(cid) {
			a.Close(cid, ProtocolVersionError)
			return Closed
		}
		if !a.ProcessReceivedMessage(cid) {
			a.Close(cid, ReasonTimeout)
			return Closed
		}
		a.EmitConnResp(cid)
		a.SetState(cid, Start)
		return Start
	default:
		return Down
	}
}

func dispatchStart(a Actuator, cid int, event Event) State {
	switch event {
	case Open, SendData:
		a.Close(cid, ServiceNotAllowed)
		return Closed
	case Close:
		a.Close(cid, UserRequest)
		return Closed
	case ConnReqRx, RetrReqRx, RetrRespRx, DataRx, RetrDataRx:
		a.Close(cid, UnexpectedMessage)
		return Closed
	case ConnRespRx:
		if a.IsServer(cid) {
			a.Close(cid, UnexpectedMessage)
			return Closed
		}
		if !a.VersionAccepted(cid) {
			a.Close(cid, ProtocolVersionError)
			return Closed
		}
		if !a.ProcessReceivedMessage(cid) {
			a.Close(cid, ReasonTimeout)
			return Closed
		}
		a.EmitHb(cid)
		a.SetState(cid, Up)
		return Up
	case DiscReqRx:
		a.ClosePeer(cid)
		return Closed
	case HbRx:
		seq, cts, server := a.SequenceInSeq(cid), a.CtsInSeq(cid), a.IsServer(cid)
		switch {
		case seq && server && cts:
			if !a.ProcessReceivedMessage(cid) {
				a.Close(cid, ReasonTimeout)
				return Closed
			}
			a.SetState(cid, Up)
			return Up
		case seq && server && !cts:
			a.Close(cid, ProtocolSequenceError)
			return Closed
		case seq && !server:
			a.Close(cid, UnexpectedMessage)
			return Closed
		case !seq && server:
			a.Close(cid, SequenceNumberError)
			return Closed
		default: // !seq && client
			a.Close(cid, UnexpectedMessage)
			return Closed
		}
	case SendHb:
		if a.IsServer(cid) {
			a.EmitHb(cid)
		}
		return Start
	case Timeout:
		a.Close(cid, ReasonTimeout)
		return Closed
	default:
		return Start
	}
}

// upCommon handles the event subset identical across Up, RetransRequest
// and RetransRunning (spec: "RetransRequest/RetransRunning identical
// to Up except ..."). ok is false when the caller must fall through to
// its own state-specific handling of event.
func upCommon(a Actuator, cid int, event Event) (next State, ok bool) {
	switch event {
	case Open:
		a.Close(cid, ServiceNotAllowed)
		return Closed, true
	case Close:
		a.Close(cid, UserRequest)
		return Closed, true
	case SendData:
		a.EmitDataMsg(cid)
		return Up, true // caller overrides the returned state if not Up
	case ConnReqRx, ConnRespRx:
		a.Close(cid, UnexpectedMessage)
		return Closed, true
	case DiscReqRx:
		a.ClosePeer(cid)
		return Closed, true
	case SendHb:
		a.EmitHb(cid)
		return Up, true
	case Timeout:
		a.Close(cid, ReasonTimeout)
		return Closed, true
	default:
		return 0, false
	}
}

func dispatchUp(a Actuator, cid int, event Event) State {
	if next, ok := upCommon(a, cid, event); ok {
		if next == Up && event != SendData && event != SendHb {
			return Up
		}
		return next
	}

	switch event {
	case RetrRespRx, RetrDataRx:
		a.Close(cid, UnexpectedMessage)
		return Closed
	case RetrReqRx:
		if !a.RetrSNAvailable(cid) {
			a.Close(cid, RetransmissionFailed)
			return Closed
		}
		if a.SequenceInSeq(cid) {
			if !a.ProcessReceivedMessage(cid) {
				a.Close(cid, ReasonTimeout)
				return Closed
			}
			a.HandleRetrReq(cid)
			return Up
		}
		a.SetCSRFromPDU(cid)
		a.HandleRetrReq(cid)
		a.EmitRetrReq(cid)
		a.SetState(cid, RetransRequest)
		return RetransRequest
	case HbRx, DataRx:
		seq, cts := a.SequenceInSeq(cid), a.CtsInSeq(cid)
		switch {
		case seq && cts:
			if !a.ProcessReceivedMessage(cid) {
				a.Close(cid, ReasonTimeout)
				return Closed
			}
			return Up
		case seq && !cts:
			a.Close(cid, ProtocolSequenceError)
			return Closed
		default: // !seq
			a.DiscardInputBuffer(cid)
			a.EmitRetrReq(cid)
			a.SetState(cid, RetransRequest)
			return RetransRequest
		}
	default:
		return Up
	}
}

func dispatchRetransRequest(a Actuator, cid int, event Event) State {
	if next, ok := upCommon(a, cid, event); ok {
		if next == Up {
			return RetransRequest
		}
		return next
	}

	switch event {
	case HbRx, DataRx, RetrDataRx:
		return RetransRequest // [2] ignore
	case RetrRespRx:
		if !a.ProcessReceivedMessage(cid) {
			a.Close(cid, ReasonTimeout)
			return Closed
		}
		a.SetState(cid, RetransRunning)
		return RetransRunning
	case RetrReqRx:
		if !a.RetrSNAvailable(cid) {
			a.Close(cid, RetransmissionFailed)
			return Closed
		}
		if a.SequenceInSeq(cid) {
			if !a.ProcessReceivedMessage(cid) {
				a.Close(cid, ReasonTimeout)
				return Closed
			}
			a.HandleRetrReq(cid)
			return RetransRequest
		}
		a.SetCSRFromPDU(cid)
		a.HandleRetrReq(cid)
		a.EmitRetrReq(cid)
		return RetransRequest
	default:
		return RetransRequest
	}
}

func dispatchRetransRunning(a Actuator, cid int, event Event) State {
	if next, ok := upCommon(a, cid, event); ok {
		if next == Up {
			return RetransRunning
		}
		return next
	}

	switch event {
	case RetrRespRx:
		a.Close(cid, UnexpectedMessage)
		return Closed
	case RetrReqRx:
		if a.SequenceInSeq(cid) {
			a.Close(cid, UnexpectedMessage)
			return Closed
		}
		if !a.RetrSNAvailable(cid) {
			a.Close(cid, RetransmissionFailed)
			return Closed
		}
		a.SetCSRFromPDU(cid)
		a.HandleRetrReq(cid)
		a.EmitRetrReq(cid)
		a.SetState(cid, RetransRequest)
		return RetransRequest
	case HbRx, DataRx:
		seq, cts := a.SequenceInSeq(cid), a.CtsInSeq(cid)
		switch {
		case seq && cts:
			if !a.ProcessReceivedMessage(cid) {
				a.Close(cid, ReasonTimeout)
				return Closed
			}
			a.SetState(cid, Up)
			return Up
		case seq && !cts:
			a.Close(cid, ProtocolSequenceError)
			return Closed
		default:
			a.DiscardInputBuffer(cid)
			a.EmitRetrReq(cid)
			a.SetState(cid, RetransRequest)
			return RetransRequest
		}
	case RetrDataRx:
		seq, cts := a.SequenceInSeq(cid), a.CtsInSeq(cid)
		switch {
		case seq && cts:
			if !a.ProcessReceivedMessage(cid) {
				a.Close(cid, ReasonTimeout)
				return Closed
			}
			return RetransRunning
		case seq && !cts:
			a.Close(cid, ProtocolSequenceError)
			return Closed
		default:
			a.DiscardInputBuffer(cid)
			a.EmitRetrReq(cid)
			a.SetState(cid, RetransRequest)
			return RetransRequest
		}
	default:
		return RetransRunning
	}
}
