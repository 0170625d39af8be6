// Package rasta is the public API of the Safety and Retransmission
// Layer core: it wraps internal/engine behind the adapter interfaces
// and notification set described in the protocol specification's
// external-interfaces section, so an application only ever imports
// this package and its own redundancy/system adapters.
//
// Grounded on the teacher's top-level source/server.Server, which is
// the single type an embedder constructs and drives; here that role
// is played by Stack.
package rasta

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/engine"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// Re-exported error vocabulary (spec §7): callers extract the *Error
// with errors.As and compare its Kind against these.
type (
	ErrorKind = raerr.Kind
	Error     = raerr.Error
)

const (
	ErrNoError                        = raerr.NoError
	ErrNoMessageReceived               = raerr.NoMessageReceived
	ErrNotInitialized                  = raerr.NotInitialized
	ErrAlreadyInitialized              = raerr.AlreadyInitialized
	ErrInvalidConfiguration            = raerr.InvalidConfiguration
	ErrInvalidParameter                = raerr.InvalidParameter
	ErrInvalidBufferSize               = raerr.InvalidBufferSize
	ErrSendBufferFull                  = raerr.SendBufferFull
	ErrInvalidOperationInCurrentState  = raerr.InvalidOperationInCurrentState
)

// SafetyCodeType selects the trailing safety code length.
type SafetyCodeType = codec.SafetyCodeType

const (
	SafetyCodeNone    = codec.SafetyCodeNone
	SafetyCodeLowerMd4 = codec.SafetyCodeLowerMd4
	SafetyCodeFullMd4  = codec.SafetyCodeFullMd4
)

// ConnectionState is one of the seven protocol states of spec §4.F.
type ConnectionState = statemachine.State

const (
	StateClosed         = statemachine.Closed
	StateDown           = statemachine.Down
	StateStart          = statemachine.Start
	StateUp             = statemachine.Up
	StateRetransRequest = statemachine.RetransRequest
	StateRetransRunning = statemachine.RetransRunning
)

// DisconnectReason is the generic reason code delivered with a
// connection_state_notification whose state is Closed.
type DisconnectReason = statemachine.DisconnectReason

const (
	ReasonNotInUse              = statemachine.NotInUse
	ReasonUserRequest           = statemachine.UserRequest
	ReasonProtocolVersionError  = statemachine.ProtocolVersionError
	ReasonUnexpectedMessage     = statemachine.UnexpectedMessage
	ReasonProtocolSequenceError = statemachine.ProtocolSequenceError
	ReasonSequenceNumberError   = statemachine.SequenceNumberError
	ReasonRetransmissionFailed  = statemachine.RetransmissionFailed
	ReasonTimeout               = statemachine.ReasonTimeout
	ReasonServiceNotAllowed     = statemachine.ServiceNotAllowed
	ReasonPeerRequested         = statemachine.PeerRequested
)

// ConnectionConfig names one statically configured connection.
type ConnectionConfig = engine.ConnectionConfig

// MD4Init is the network-specific MD4 seed state.
type MD4Init = engine.MD4Init

// Config is the immutable configuration structure consumed by Init.
type Config = engine.Config

// DiagIntervals are the four histogram bin boundaries of spec §4.D.
type DiagIntervals = diag.Intervals

// ConnectionDiagnosticData is the payload of a diagnostic notification.
type ConnectionDiagnosticData = diag.ConnectionDiagnosticData

// RedundancyAdapter is the lossy, duplicating lower channel consumed
// by the core, per spec §6.
type RedundancyAdapter = engine.RedundancyAdapter

// SystemAdapter supplies the monotonic timer, randomness, and
// fatal-error hook the core consumes, per spec §6.
type SystemAdapter = engine.SystemAdapter

// RedDiagnosticData is the verbatim redundancy-layer diagnostic
// pass-through payload.
type RedDiagnosticData = engine.RedDiagnosticData

// ApplicationNotifier receives the four outbound notifications.
type ApplicationNotifier = engine.ApplicationNotifier

// FatalHandler is invoked on an invariant violation; replace it in
// tests to intercept instead of aborting the process.
type FatalHandler = raerr.FatalHandler

// Stack is the embeddable entry point: one Stack per RaSTA network,
// each managing up to two connections.
type Stack struct {
	eng           *engine.Engine
	log           *logrus.Entry
	fatalOverride FatalHandler
}

// StackOption configures New.
type StackOption func(*Stack)

// WithLogger attaches a logrus.Entry every log line is derived from;
// the stack adds a rasta_stack_id field to it.
func WithLogger(log *logrus.Entry) StackOption {
	return func(s *Stack) { s.log = log }
}

// WithFatalHandler replaces the default panic-on-fatal handler, e.g.
// so an integration test can assert on fatal conditions instead of
// crashing the process.
func WithFatalHandler(h FatalHandler) StackOption {
	return func(s *Stack) { s.fatalOverride = h }
}

// New builds an uninitialized Stack; call Init before any other method.
func New(adapter RedundancyAdapter, sysAdapter SystemAdapter, notifier ApplicationNotifier, opts ...StackOption) *Stack {
	s := &Stack{log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("rasta_stack_id", uuid.NewString())
	s.eng = engine.New(adapter, sysAdapter, notifier, s.fatalOverride, s.log.WithField("component", "rasta_engine"))
	return s
}

func (s *Stack) Init(cfg Config) error { return s.eng.Init(cfg) }

func (s *Stack) OpenConnection(senderID, receiverID, networkID uint32) (int, error) {
	return s.eng.OpenConnection(senderID, receiverID, networkID)
}

func (s *Stack) CloseConnection(cid int, detailedReason uint16) error {
	return s.eng.CloseConnection(cid, detailedReason)
}

func (s *Stack) SendData(cid int, payload []byte) error { return s.eng.SendData(cid, payload) }

func (s *Stack) ReadData(cid int) ([]byte, error) { return s.eng.ReadData(cid) }

func (s *Stack) GetConnectionState(cid int) (state ConnectionState, bufferUtilisation, oppositeSize int, err error) {
	return s.eng.GetConnectionState(cid)
}

func (s *Stack) Tick() error { return s.eng.Tick() }

func (s *Stack) MessageReceivedNotification(redChannelID uint32) {
	s.eng.MessageReceivedNotification(redChannelID)
}

func (s *Stack) DiagnosticNotification(redChannelID, trChannelID uint32, trDiagData []byte) {
	s.eng.DiagnosticNotification(redChannelID, trChannelID, trDiagData)
}

// DiagnosticsSnapshot returns the most recently closed diagnostic
// window per connection, used by the Prometheus collector.
func (s *Stack) DiagnosticsSnapshot() []ConnectionDiagnosticData { return s.eng.DiagnosticsSnapshot() }
