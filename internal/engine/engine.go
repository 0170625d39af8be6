// Package engine implements the per-connection core described in spec
// §4.E: sequence numbers, timers, the receive and send pipelines, and
// the glue between the codec, send/receive buffers, diagnostics and
// state machine packages.
//
// Grounded on the teacher's source/server/server.go main loop shape
// (one exported driver method fanning out per-session work) and
// source/protocol/raknet.go's Session type, generalized from RakNet's
// best-effort ACK/NACK handling to RaSTA's validated receive pipeline,
// and on original_source's srcor_sr_core.c for the exact algorithm.
package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/recvbuf"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/sendbuf"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// Engine is the aggregate protocol engine: one owned struct holding
// every per-module sub-state, replacing the teacher's (and the
// original C source's) file-local mutable tables, per SPEC_FULL.md's
// "global state -> engine struct" design note.
type Engine struct {
	cfg         Config
	codec       *codec.Codec
	send        *sendbuf.Set
	recv        *recvbuf.Set
	diagnostics *diag.Set
	conns       []connection
	initialized bool

	adapter    RedundancyAdapter
	sysAdapter SystemAdapter
	notifier   ApplicationNotifier
	fatal      raerr.FatalHandler
	log        *logrus.Entry
}

// New builds an uninitialized Engine wired to its external
// collaborators; Init must be called before any other operation.
func New(adapter RedundancyAdapter, sysAdapter SystemAdapter, notifier ApplicationNotifier, fatal raerr.FatalHandler, log *logrus.Entry) *Engine {
	if fatal == nil {
		fatal = func(kind raerr.Kind, err error) {
			if sysAdapter != nil {
				sysAdapter.FatalError(kind.String())
			}
			raerr.DefaultFatalHandler(kind, err)
		}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{adapter: adapter, sysAdapter: sysAdapter, notifier: notifier, fatal: fatal, log: log}
}

// Init validates cfg, stores it, and initializes every subsystem, per
// spec §4.G. A second call returns AlreadyInitialized.
func (e *Engine) Init(cfg Config) error {
	if e.initialized {
		return raerr.New(raerr.AlreadyInitialized, "engine already initialized")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.cfg = cfg
	e.codec = codec.NewCodec(cfg.SafetyCodeType, cfg.MD4Init.A, cfg.MD4Init.B, cfg.MD4Init.C, cfg.MD4Init.D)
	e.conns = make([]connection, len(cfg.Connections))
	for i, cc := range cfg.Connections {
		e.conns[i].cfg = cc
		e.conns[i].state = statemachine.Closed
	}
	e.send = sendbuf.NewSet(len(cfg.Connections), int(cfg.NSendMax))
	e.recv = recvbuf.NewSet(len(cfg.Connections), int(cfg.NSendMax), e)
	e.diagnostics = diag.NewSet(len(cfg.Connections), cfg.DiagIntervals, cfg.TMax, cfg.NDiagWindow, e, e.log)
	e.initialized = true

	e.log.WithFields(logrus.Fields{"connections": len(cfg.Connections), "t_max": cfg.TMax, "t_h": cfg.TH}).Info("rasta engine initialized")
	return nil
}

// MessageReceived implements recvbuf.Notifier, forwarding straight to
// the application notifier.
func (e *Engine) MessageReceived(cid int) { e.notifier.MessageReceived(cid) }

// SrDiagnosticNotification implements diag.Notifier.
func (e *Engine) SrDiagnosticNotification(data diag.ConnectionDiagnosticData) {
	e.notifier.SrDiagnosticNotification(data)
}

// DiagnosticsSnapshot returns the most recently closed diagnostic
// window per connection, for Prometheus scrape-time collection.
func (e *Engine) DiagnosticsSnapshot() []diag.ConnectionDiagnosticData {
	return e.diagnostics.Snapshot()
}

func (e *Engine) lookupConnection(senderID, receiverID uint32) (int, bool) {
	for i, c := range e.conns {
		if c.cfg.SenderID == senderID && c.cfg.ReceiverID == receiverID {
			return i, true
		}
	}
	return 0, false
}

// OpenConnection resolves the statically configured connection
// matching (senderID, receiverID, networkID) and issues the state
// machine's Open event, per spec §4.G.
func (e *Engine) OpenConnection(senderID, receiverID, networkID uint32) (int, error) {
	if !e.initialized {
		return 0, raerr.New(raerr.NotInitialized, "engine not initialized")
	}
	if networkID != e.cfg.RastaNetworkID {
		return 0, raerr.New(raerr.InvalidParameter, "network id %d does not match configured network %d", networkID, e.cfg.RastaNetworkID)
	}
	cid, found := e.lookupConnection(senderID, receiverID)
	if !found {
		return 0, raerr.New(raerr.InvalidParameter, "no configured connection for sender=%d receiver=%d", senderID, receiverID)
	}
	e.dispatch(cid, statemachine.Open)
	return cid, nil
}

// CloseConnection issues the state machine's Close event, stashing
// detailedReason for the resulting Close action.
func (e *Engine) CloseConnection(cid int, detailedReason uint16) error {
	if !e.initialized {
		return raerr.New(raerr.NotInitialized, "engine not initialized")
	}
	if cid < 0 || cid >= len(e.conns) {
		return raerr.New(raerr.InvalidParameter, "connection id %d out of range", cid)
	}
	e.conns[cid].detailedDisconnectReason = detailedReason
	e.dispatch(cid, statemachine.Close)
	return nil
}

// SendData stages payload in the temp send buffer and issues SendData,
// per spec §4.G. Fails SendBufferFull if the ring is already full, and
// InvalidOperationInCurrentState when the connection is Closed.
func (e *Engine) SendData(cid int, payload []byte) error {
	if !e.initialized {
		return raerr.New(raerr.NotInitialized, "engine not initialized")
	}
	if cid < 0 || cid >= len(e.conns) {
		return raerr.New(raerr.InvalidParameter, "connection id %d out of range", cid)
	}
	c := &e.conns[cid]
	if c.state == statemachine.Closed {
		return raerr.New(raerr.InvalidOperationInCurrentState, "connection %d is closed", cid)
	}
	if len(payload) < 1 || len(payload) > 1055 {
		return raerr.New(raerr.InvalidParameter, "payload size %d out of range [1,1055]", len(payload))
	}
	if e.send.GetFree(cid) == 0 {
		return raerr.New(raerr.SendBufferFull, "connection %d: send buffer full", cid)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.temp = tempSendBuffer{inUse: true, payload: cp}
	e.dispatch(cid, statemachine.SendData)
	return nil
}

// ReadData pops the oldest delivered payload.
func (e *Engine) ReadData(cid int) ([]byte, error) {
	if !e.initialized {
		return nil, raerr.New(raerr.NotInitialized, "engine not initialized")
	}
	if cid < 0 || cid >= len(e.conns) {
		return nil, raerr.New(raerr.InvalidParameter, "connection id %d out of range", cid)
	}
	return e.recv.Read(cid)
}

// GetConnectionState reports state, send-buffer utilisation, and the
// peer's advertised receive window, per spec §4.G.
func (e *Engine) GetConnectionState(cid int) (state statemachine.State, bufferUtilisation, oppositeSize int, err error) {
	if !e.initialized {
		return 0, 0, 0, raerr.New(raerr.NotInitialized, "engine not initialized")
	}
	if cid < 0 || cid >= len(e.conns) {
		return 0, 0, 0, raerr.New(raerr.InvalidParameter, "connection id %d out of range", cid)
	}
	c := &e.conns[cid]
	return c.state, e.send.GetUsed(cid), int(c.oppositeNSendMax), nil
}

// MessageReceivedNotification is the adapter-facing inbound
// notification of spec §4.G: it marks the matching connection (the
// redundancy channel id equals the connection id) as having a message
// to drain on the next Tick.
func (e *Engine) MessageReceivedNotification(redChannelID uint32) {
	cid := int(redChannelID)
	if cid < 0 || cid >= len(e.conns) {
		return
	}
	e.conns[cid].receivedPending = true
}

// DiagnosticNotification forwards the redundancy layer's diagnostic
// data verbatim as a red_diagnostic_notification, per spec §4.G.
func (e *Engine) DiagnosticNotification(redChannelID, trChannelID uint32, trDiagData []byte) {
	e.notifier.RedDiagnosticNotification(RedDiagnosticData{RedChannelID: redChannelID, TrChannelID: trChannelID, TrDiagData: trDiagData})
}

// Tick drains pending receives, flushes pending sends, and fires
// timeout/heartbeat events for every connection, per spec §4.G.
func (e *Engine) Tick() error {
	if !e.initialized {
		return raerr.New(raerr.NotInitialized, "engine not initialized")
	}
	for cid := range e.conns {
		e.drainReceives(cid)
		e.sendPending(cid)

		now := e.sysAdapter.GetTimerValue()
		switch {
		case e.isMessageTimeout(cid, now):
			e.dispatch(cid, statemachine.Timeout)
		case e.isHeartbeatInterval(cid, now) && e.send.GetPendingSend(cid) == 0:
			e.dispatch(cid, statemachine.SendHb)
		}
	}
	return nil
}

func (e *Engine) drainReceives(cid int) {
	c := &e.conns[cid]
	for c.receivedPending && e.recv.GetFree(cid) >= 1 && e.send.GetFree(cid) >= 3 {
		ev, accepted := e.receiveMessage(cid)
		if !c.receivedPending {
			return
		}
		if accepted {
			e.dispatch(cid, ev)
		}
	}
}

func (e *Engine) dispatch(cid int, ev statemachine.Event) {
	c := &e.conns[cid]
	statemachine.Dispatch(e, cid, c.state, ev)
}
