// Package config loads the immutable RaSTA network configuration spec
// §3 describes (t_max, t_h, safety code type, MD4 seed, per-connection
// sender/receiver ids, diagnostic window) from a YAML file and
// environment variables, and converts it into engine.Config. No
// built-in defaults are set; fields absent from both stay zero.
//
// Grounded on marmos91-dittofs/pkg/config.Load's
// viper-file-then-env-then-defaults precedence and its
// mapstructure.DecodeHookFunc pattern for non-primitive fields (here:
// the hex-string MD4 seed words instead of dittofs's byte sizes).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/engine"
)

// ConnectionFile is one entry of the connections list in the config
// file, mirroring spec §3's per-connection config block.
type ConnectionFile struct {
	ConnectionID int    `mapstructure:"connection_id"`
	SenderID     uint32 `mapstructure:"sender_id"`
	ReceiverID   uint32 `mapstructure:"receiver_id"`
}

// File is the on-disk shape of the RaSTA network configuration.
type File struct {
	RastaNetworkID uint32 `mapstructure:"rasta_network_id"`
	TMax           uint32 `mapstructure:"t_max"`
	TH             uint32 `mapstructure:"t_h"`
	SafetyCodeType string `mapstructure:"safety_code_type"` // none|lower_md4|full_md4
	MWA            uint16 `mapstructure:"m_w_a"`
	NSendMax       uint16 `mapstructure:"n_send_max"`
	NDiagWindow    uint32 `mapstructure:"n_diag_window"`

	// MD4InitHex holds four 32-bit hex words, e.g. "67452301".
	MD4InitHex [4]string `mapstructure:"md4_init"`

	DiagIntervals [4]uint32 `mapstructure:"diag_timing_distr_intervals"`

	Connections []ConnectionFile `mapstructure:"connections"`
}

// Load reads configuration from configPath (or the default search
// path/environment if empty) and converts it into an engine.Config.
// Environment variables use the RASTA_ prefix, e.g. RASTA_T_MAX=1000.
func Load(configPath string) (engine.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RASTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return engine.Config{}, fmt.Errorf("reading rasta config: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return engine.Config{}, fmt.Errorf("unmarshalling rasta config: %w", err)
	}

	return f.ToEngineConfig()
}

// ToEngineConfig converts the on-disk representation into the
// engine's immutable Config, parsing the hex MD4 seed words and the
// safety-code-type name.
func (f File) ToEngineConfig() (engine.Config, error) {
	sct, err := parseSafetyCodeType(f.SafetyCodeType)
	if err != nil {
		return engine.Config{}, err
	}

	var md4 engine.MD4Init
	words := []*uint32{&md4.A, &md4.B, &md4.C, &md4.D}
	for i, hex := range f.MD4InitHex {
		if hex == "" {
			continue
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return engine.Config{}, fmt.Errorf("md4_init[%d] %q: %w", i, hex, err)
		}
		*words[i] = uint32(v)
	}

	conns := make([]engine.ConnectionConfig, len(f.Connections))
	for i, c := range f.Connections {
		conns[i] = engine.ConnectionConfig{ConnectionID: c.ConnectionID, SenderID: c.SenderID, ReceiverID: c.ReceiverID}
	}

	cfg := engine.Config{
		RastaNetworkID: f.RastaNetworkID,
		TMax:           f.TMax,
		TH:             f.TH,
		SafetyCodeType: sct,
		MWA:            f.MWA,
		NSendMax:       f.NSendMax,
		NDiagWindow:    f.NDiagWindow,
		MD4Init:        md4,
		DiagIntervals:  diag.Intervals(f.DiagIntervals),
		Connections:    conns,
	}
	return cfg, cfg.Validate()
}

func parseSafetyCodeType(name string) (codec.SafetyCodeType, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return codec.SafetyCodeNone, nil
	case "lower_md4", "lowermd4":
		return codec.SafetyCodeLowerMd4, nil
	case "full_md4", "fullmd4":
		return codec.SafetyCodeFullMd4, nil
	default:
		return 0, fmt.Errorf("unknown safety_code_type %q", name)
	}
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rastad")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rastad")
}
