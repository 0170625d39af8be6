package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeActuator records every call so tests can assert which actions a
// dispatch triggered, and lets tests stub guard return values.
type fakeActuator struct {
	isServer        bool
	versionAccepted bool
	sequenceInSeq   bool
	ctsInSeq        bool
	retrSNAvailable bool
	processOK       bool

	calls       []string
	closedWith  DisconnectReason
	closedPeer  bool
	statesSetTo []State
}

func (f *fakeActuator) IsServer(cid int) bool        { return f.isServer }
func (f *fakeActuator) VersionAccepted(cid int) bool { return f.versionAccepted }
func (f *fakeActuator) SequenceInSeq(cid int) bool   { return f.sequenceInSeq }
func (f *fakeActuator) CtsInSeq(cid int) bool        { return f.ctsInSeq }
func (f *fakeActuator) RetrSNAvailable(cid int) bool { return f.retrSNAvailable }

func (f *fakeActuator) InitConnectionState(cid int)         { f.calls = append(f.calls, "InitConnectionState") }
func (f *fakeActuator) EmitConnReq(cid int)                 { f.calls = append(f.calls, "EmitConnReq") }
func (f *fakeActuator) EmitConnResp(cid int)                { f.calls = append(f.calls, "EmitConnResp") }
func (f *fakeActuator) EmitHb(cid int)                       { f.calls = append(f.calls, "EmitHb") }
func (f *fakeActuator) EmitRetrReq(cid int)                  { f.calls = append(f.calls, "EmitRetrReq") }
func (f *fakeActuator) EmitDataMsg(cid int)                  { f.calls = append(f.calls, "EmitDataMsg") }
func (f *fakeActuator) ProcessReceivedMessage(cid int) bool  { f.calls = append(f.calls, "ProcessReceivedMessage"); return f.processOK }
func (f *fakeActuator) HandleRetrReq(cid int)                { f.calls = append(f.calls, "HandleRetrReq") }
func (f *fakeActuator) SetCSRFromPDU(cid int)                { f.calls = append(f.calls, "SetCSRFromPDU") }
func (f *fakeActuator) DiscardInputBuffer(cid int)           { f.calls = append(f.calls, "DiscardInputBuffer") }
func (f *fakeActuator) ForceCloseRedundancyChannel(cid int)  { f.calls = append(f.calls, "ForceCloseRedundancyChannel") }
func (f *fakeActuator) Close(cid int, reason DisconnectReason) {
	f.calls = append(f.calls, "Close")
	f.closedWith = reason
}
func (f *fakeActuator) ClosePeer(cid int) { f.calls = append(f.calls, "ClosePeer"); f.closedPeer = true }
func (f *fakeActuator) SetState(cid int, s State) {
	f.calls = append(f.calls, "SetState")
	f.statesSetTo = append(f.statesSetTo, s)
}

func TestClosedIgnoresEverythingButOpen(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, Closed, DataRx)
	assert.Equal(t, Closed, next)
	assert.Empty(t, f.calls)
}

func TestClosedOpenAsClientEmitsConnReq(t *testing.T) {
	f := &fakeActuator{isServer: false}
	next := Dispatch(f, 0, Closed, Open)
	assert.Equal(t, Start, next)
	assert.Contains(t, f.calls, "EmitConnReq")
	assert.NotContains(t, f.calls, "EmitConnResp")
}

func TestClosedOpenAsServerGoesDownWithoutEmitting(t *testing.T) {
	f := &fakeActuator{isServer: true}
	next := Dispatch(f, 0, Closed, Open)
	assert.Equal(t, Down, next)
	assert.NotContains(t, f.calls, "EmitConnReq")
}

func TestDownConnReqRxRejectsBadVersion(t *testing.T) {
	f := &fakeActuator{versionAccepted: false}
	next := Dispatch(f, 0, Down, ConnReqRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, ProtocolVersionError, f.closedWith)
}

func TestDownConnReqRxAcceptsAndMovesToStart(t *testing.T) {
	f := &fakeActuator{versionAccepted: true, processOK: true}
	next := Dispatch(f, 0, Down, ConnReqRx)
	assert.Equal(t, Start, next)
	assert.Contains(t, f.calls, "EmitConnResp")
}

func TestDownOpenForceClosesWithoutDiscReq(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, Down, Open)
	assert.Equal(t, Closed, next)
	assert.Contains(t, f.calls, "ForceCloseRedundancyChannel")
	assert.NotContains(t, f.calls, "Close")
}

func TestStartConnRespRxAsClientGoesUp(t *testing.T) {
	f := &fakeActuator{isServer: false, versionAccepted: true, processOK: true}
	next := Dispatch(f, 0, Start, ConnRespRx)
	assert.Equal(t, Up, next)
	assert.Contains(t, f.calls, "EmitHb")
}

func TestStartConnRespRxAsServerIsUnexpected(t *testing.T) {
	f := &fakeActuator{isServer: true}
	next := Dispatch(f, 0, Start, ConnRespRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, UnexpectedMessage, f.closedWith)
}

func TestStartHbRxServerInSeqWithCtsGoesUp(t *testing.T) {
	f := &fakeActuator{isServer: true, sequenceInSeq: true, ctsInSeq: true, processOK: true}
	next := Dispatch(f, 0, Start, HbRx)
	assert.Equal(t, Up, next)
}

func TestStartHbRxServerInSeqWithoutCtsIsProtocolSequenceError(t *testing.T) {
	f := &fakeActuator{isServer: true, sequenceInSeq: true, ctsInSeq: false}
	next := Dispatch(f, 0, Start, HbRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, ProtocolSequenceError, f.closedWith)
}

func TestStartHbRxServerOutOfSeqIsSequenceNumberError(t *testing.T) {
	f := &fakeActuator{isServer: true, sequenceInSeq: false}
	next := Dispatch(f, 0, Start, HbRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, SequenceNumberError, f.closedWith)
}

func TestStartDiscReqRxClosesViaClosePeer(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, Start, DiscReqRx)
	assert.Equal(t, Closed, next)
	assert.True(t, f.closedPeer)
	assert.NotContains(t, f.calls, "Close")
}

func TestUpSendDataEmitsAndStaysUp(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, Up, SendData)
	assert.Equal(t, Up, next)
	assert.Contains(t, f.calls, "EmitDataMsg")
}

func TestUpRetrReqRxUnavailableClosesDirectly(t *testing.T) {
	f := &fakeActuator{retrSNAvailable: false}
	next := Dispatch(f, 0, Up, RetrReqRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, RetransmissionFailed, f.closedWith)
	assert.NotContains(t, f.calls, "HandleRetrReq")
}

func TestUpRetrReqRxOutOfSeqEntersRetransRequest(t *testing.T) {
	f := &fakeActuator{retrSNAvailable: true, sequenceInSeq: false}
	next := Dispatch(f, 0, Up, RetrReqRx)
	assert.Equal(t, RetransRequest, next)
	assert.Contains(t, f.calls, "SetCSRFromPDU")
	assert.Contains(t, f.calls, "HandleRetrReq")
	assert.Contains(t, f.calls, "EmitRetrReq")
}

func TestUpHbRxOutOfSeqEntersRetransRequest(t *testing.T) {
	f := &fakeActuator{sequenceInSeq: false}
	next := Dispatch(f, 0, Up, HbRx)
	assert.Equal(t, RetransRequest, next)
	assert.Contains(t, f.calls, "DiscardInputBuffer")
}

func TestUpDiscReqRxClosesViaClosePeer(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, Up, DiscReqRx)
	assert.Equal(t, Closed, next)
	assert.True(t, f.closedPeer)
}

func TestUpTimeoutClosesWithReasonTimeout(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, Up, Timeout)
	assert.Equal(t, Closed, next)
	assert.Equal(t, ReasonTimeout, f.closedWith)
}

func TestRetransRequestRetrRespRxMovesToRetransRunning(t *testing.T) {
	f := &fakeActuator{processOK: true}
	next := Dispatch(f, 0, RetransRequest, RetrRespRx)
	assert.Equal(t, RetransRunning, next)
}

func TestRetransRequestIgnoresHbDataRetrData(t *testing.T) {
	for _, ev := range []Event{HbRx, DataRx, RetrDataRx} {
		f := &fakeActuator{}
		next := Dispatch(f, 0, RetransRequest, ev)
		assert.Equal(t, RetransRequest, next)
		assert.Empty(t, f.calls)
	}
}

func TestRetransRunningHbRxInSeqReturnsToUp(t *testing.T) {
	f := &fakeActuator{sequenceInSeq: true, ctsInSeq: true, processOK: true}
	next := Dispatch(f, 0, RetransRunning, HbRx)
	assert.Equal(t, Up, next)
}

func TestRetransRunningRetrReqRxInSeqIsUnexpected(t *testing.T) {
	f := &fakeActuator{sequenceInSeq: true}
	next := Dispatch(f, 0, RetransRunning, RetrReqRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, UnexpectedMessage, f.closedWith)
}

func TestRetransRunningRetrRespRxIsUnexpected(t *testing.T) {
	f := &fakeActuator{}
	next := Dispatch(f, 0, RetransRunning, RetrRespRx)
	assert.Equal(t, Closed, next)
	assert.Equal(t, UnexpectedMessage, f.closedWith)
}

func TestEveryStateCloseGoesToClosedWithUserRequest(t *testing.T) {
	for _, s := range []State{Start, Up, RetransRequest, RetransRunning} {
		f := &fakeActuator{}
		next := Dispatch(f, 0, s, Close)
		assert.Equal(t, Closed, next)
		assert.Equal(t, UserRequest, f.closedWith)
	}
}

func TestStateAndEventStringers(t *testing.T) {
	assert.Equal(t, "Up", Up.String())
	assert.Equal(t, "RetrReqRx", RetrReqRx.String())
	assert.Contains(t, State(99).String(), "State(?)")
}
