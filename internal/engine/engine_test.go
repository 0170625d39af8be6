package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/statemachine"
)

// pairAdapter connects two engines back to back without a real
// transport: SendMessage on one side queues bytes on the peer
// adapter's inbox and immediately notifies the peer engine, mirroring
// how a real redundancy layer would call message_received_notification.
type pairAdapter struct {
	inbox [][]byte
	peer  *Engine
	other *pairAdapter
}

func (a *pairAdapter) OpenRedundancyChannel(channelID uint32)  {}
func (a *pairAdapter) CloseRedundancyChannel(channelID uint32) {}

func (a *pairAdapter) SendMessage(channelID uint32, bytes []byte) {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)
	a.other.inbox = append(a.other.inbox, cp)
	a.other.peer.MessageReceivedNotification(channelID)
}

func (a *pairAdapter) ReadMessage(channelID uint32) ([]byte, bool) {
	if len(a.inbox) == 0 {
		return nil, false
	}
	msg := a.inbox[0]
	a.inbox = a.inbox[1:]
	return msg, true
}

type fakeClock struct {
	now    uint32
	random uint32
}

func (c *fakeClock) GetTimerValue() uint32      { return c.now }
func (c *fakeClock) GetTimerGranularity() uint32 { return 1 }
func (c *fakeClock) GetRandomU32() uint32        { return c.random }
func (c *fakeClock) FatalError(kind string)      { panic("fatal: " + kind) }

type recordingNotifier struct {
	states []statemachine.State
}

func (n *recordingNotifier) MessageReceived(cid int) {}
func (n *recordingNotifier) ConnectionStateNotification(cid int, state statemachine.State, bufferUtil, oppositeBufferSize int, discReason statemachine.DisconnectReason, detailedReason uint16) {
	n.states = append(n.states, state)
}
func (n *recordingNotifier) SrDiagnosticNotification(data diag.ConnectionDiagnosticData) {}
func (n *recordingNotifier) RedDiagnosticNotification(data RedDiagnosticData)            {}

func demoConfig(sender, receiver uint32) Config {
	return Config{
		TMax: 1500, TH: 500, MWA: 5, NSendMax: 10, NDiagWindow: 100,
		DiagIntervals: diag.Intervals{100, 300, 600, 1000},
		Connections:   []ConnectionConfig{{ConnectionID: 0, SenderID: sender, ReceiverID: receiver}},
	}
}

func TestClientServerHandshakeReachesUp(t *testing.T) {
	clientNotifier := &recordingNotifier{}
	serverNotifier := &recordingNotifier{}

	clientAdapter := &pairAdapter{}
	serverAdapter := &pairAdapter{}

	clock := &fakeClock{now: 1000, random: 42}

	client := New(clientAdapter, clock, clientNotifier, nil, nil)
	server := New(serverAdapter, clock, serverNotifier, nil, nil)

	clientAdapter.peer = client
	clientAdapter.other = serverAdapter
	serverAdapter.peer = server
	serverAdapter.other = clientAdapter

	require.NoError(t, client.Init(demoConfig(1, 2)))
	require.NoError(t, server.Init(demoConfig(2, 1)))

	// The server is opened first so it waits in Down for the ConnReq.
	_, err := server.OpenConnection(2, 1, 0)
	require.NoError(t, err)

	_, err = client.OpenConnection(1, 2, 0)
	require.NoError(t, err)

	// Client emitted ConnReq synchronously inside OpenConnection's
	// dispatch; drive the server to process it.
	require.NoError(t, server.Tick())
	state, _, _, _ := server.GetConnectionState(0)
	assert.Equal(t, statemachine.Start, state)

	// Server's ConnResp is now pending for the client.
	require.NoError(t, client.Tick())
	state, _, _, _ = client.GetConnectionState(0)
	assert.Equal(t, statemachine.Up, state)

	// Client's Hb is now pending for the server.
	require.NoError(t, server.Tick())
	state, _, _, _ = server.GetConnectionState(0)
	assert.Equal(t, statemachine.Up, state)
}

func TestSendDataDeliversPayloadEndToEnd(t *testing.T) {
	clientNotifier := &recordingNotifier{}
	serverNotifier := &recordingNotifier{}
	clientAdapter := &pairAdapter{}
	serverAdapter := &pairAdapter{}
	clock := &fakeClock{now: 1000, random: 7}

	client := New(clientAdapter, clock, clientNotifier, nil, nil)
	server := New(serverAdapter, clock, serverNotifier, nil, nil)
	clientAdapter.peer, clientAdapter.other = client, serverAdapter
	serverAdapter.peer, serverAdapter.other = server, clientAdapter

	require.NoError(t, client.Init(demoConfig(1, 2)))
	require.NoError(t, server.Init(demoConfig(2, 1)))

	_, err := server.OpenConnection(2, 1, 0)
	require.NoError(t, err)
	_, err = client.OpenConnection(1, 2, 0)
	require.NoError(t, err)
	require.NoError(t, server.Tick())
	require.NoError(t, client.Tick())
	require.NoError(t, server.Tick())

	require.NoError(t, client.SendData(0, []byte("hello")))
	require.NoError(t, client.Tick())
	require.NoError(t, server.Tick())

	payload, err := server.ReadData(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)
}

func TestSendDataRejectedWhenClosed(t *testing.T) {
	notifier := &recordingNotifier{}
	adapter := &pairAdapter{}
	clock := &fakeClock{}
	e := New(adapter, clock, notifier, nil, nil)
	require.NoError(t, e.Init(demoConfig(1, 2)))

	err := e.SendData(0, []byte("x"))
	assert.Error(t, err)
}

func TestDoubleInitFails(t *testing.T) {
	e := New(&pairAdapter{}, &fakeClock{}, &recordingNotifier{}, nil, nil)
	require.NoError(t, e.Init(demoConfig(1, 2)))
	assert.Error(t, e.Init(demoConfig(1, 2)))
}

func TestOpenConnectionUnknownPairFails(t *testing.T) {
	e := New(&pairAdapter{}, &fakeClock{}, &recordingNotifier{}, nil, nil)
	require.NoError(t, e.Init(demoConfig(1, 2)))
	_, err := e.OpenConnection(9, 9, 0)
	assert.Error(t, err)
}
