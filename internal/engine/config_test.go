package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
)

func validConfig() Config {
	return Config{
		TMax: 1500, TH: 500, MWA: 5, NSendMax: 10, NDiagWindow: 100,
		DiagIntervals: diag.Intervals{100, 300, 600, 1000},
		Connections:   []ConnectionConfig{{ConnectionID: 0, SenderID: 1, ReceiverID: 2}},
	}
}

func TestValidConfigPasses(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestTMaxOutOfRange(t *testing.T) {
	c := validConfig()
	c.TMax = 500
	assert.Error(t, c.Validate())
}

func TestMWAMustBeLessThanNSendMax(t *testing.T) {
	c := validConfig()
	c.MWA = 10
	c.NSendMax = 10
	assert.Error(t, c.Validate())
}

func TestConnectionIDMustEqualIndex(t *testing.T) {
	c := validConfig()
	c.Connections[0].ConnectionID = 1
	assert.Error(t, c.Validate())
}

func TestSenderAndReceiverMustDiffer(t *testing.T) {
	c := validConfig()
	c.Connections[0].ReceiverID = c.Connections[0].SenderID
	assert.Error(t, c.Validate())
}

func TestTooManyConnections(t *testing.T) {
	c := validConfig()
	c.Connections = []ConnectionConfig{
		{ConnectionID: 0, SenderID: 1, ReceiverID: 2},
		{ConnectionID: 1, SenderID: 3, ReceiverID: 4},
		{ConnectionID: 2, SenderID: 5, ReceiverID: 6},
	}
	assert.Error(t, c.Validate())
}

func TestIsServerBySmallerSenderID(t *testing.T) {
	assert.False(t, ConnectionConfig{SenderID: 1, ReceiverID: 2}.IsServer())
	assert.True(t, ConnectionConfig{SenderID: 2, ReceiverID: 1}.IsServer())
}
