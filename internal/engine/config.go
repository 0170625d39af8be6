package engine

import (
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/raerr"
)

// ConnectionConfig names the two endpoints of one statically configured
// connection, per spec §3's per-connection config block.
type ConnectionConfig struct {
	ConnectionID int
	SenderID     uint32
	ReceiverID   uint32
}

// MD4Init is the network-specific MD4 seed state, per spec §3.
type MD4Init struct {
	A, B, C, D uint32
}

// Config is the immutable-after-init configuration structure spec §3
// and §6 describe: loaded by an external collaborator (internal/config)
// and handed to Init as a single value.
type Config struct {
	RastaNetworkID uint32
	TMax           uint32 // ms, [750, 2000]
	TH             uint32 // ms, [300, 750]
	SafetyCodeType codec.SafetyCodeType
	MWA            uint16 // [1, 19]
	NSendMax       uint16 // [2, 20]
	NDiagWindow    uint32 // [100, 10000]
	MD4Init        MD4Init
	DiagIntervals  diag.Intervals
	Connections    []ConnectionConfig
}

// Validate checks the range and cross-field invariants of spec §3,
// returning InvalidConfiguration on the first violation.
func (c Config) Validate() error {
	if c.TMax < 750 || c.TMax > 2000 {
		return raerr.New(raerr.InvalidConfiguration, "t_max %d out of range [750,2000]", c.TMax)
	}
	if c.TH < 300 || c.TH > 750 {
		return raerr.New(raerr.InvalidConfiguration, "t_h %d out of range [300,750]", c.TH)
	}
	if c.MWA < 1 || c.MWA > 19 {
		return raerr.New(raerr.InvalidConfiguration, "m_w_a %d out of range [1,19]", c.MWA)
	}
	if c.NSendMax < 2 || c.NSendMax > 20 {
		return raerr.New(raerr.InvalidConfiguration, "n_send_max %d out of range [2,20]", c.NSendMax)
	}
	if c.MWA >= c.NSendMax {
		return raerr.New(raerr.InvalidConfiguration, "m_w_a %d must be < n_send_max %d", c.MWA, c.NSendMax)
	}
	if c.NDiagWindow < 100 || c.NDiagWindow > 10000 {
		return raerr.New(raerr.InvalidConfiguration, "n_diag_window %d out of range [100,10000]", c.NDiagWindow)
	}
	if !diag.AreIntervalsValid(c.TMax, c.DiagIntervals) {
		return raerr.New(raerr.InvalidConfiguration, "diag_timing_distr_intervals %v invalid for t_max %d", c.DiagIntervals, c.TMax)
	}
	if len(c.Connections) == 0 || len(c.Connections) > 2 {
		return raerr.New(raerr.InvalidConfiguration, "connection count %d out of range [1,2]", len(c.Connections))
	}
	for i, cc := range c.Connections {
		if cc.ConnectionID != i {
			return raerr.New(raerr.InvalidConfiguration, "connection %d: connection_id must equal index, got %d", i, cc.ConnectionID)
		}
		if cc.SenderID == cc.ReceiverID {
			return raerr.New(raerr.InvalidConfiguration, "connection %d: sender_id equals receiver_id", i)
		}
	}
	return nil
}

// IsServer reports whether this side is the server for the given
// connection's identities: the party with the numerically smaller
// sender_id is the client, per spec §4.E.4.
func (cc ConnectionConfig) IsServer() bool { return cc.SenderID > cc.ReceiverID }
