package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	rastaconfig "github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect the RaSTA network configuration rastad would load.

Use 'rastad config show' to print the effective, validated
configuration after applying the config file and RASTA_* environment
overrides.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rastaconfig.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		fmt.Printf("rasta_network_id: %d\n", cfg.RastaNetworkID)
		fmt.Printf("t_max: %d\n", cfg.TMax)
		fmt.Printf("t_h: %d\n", cfg.TH)
		fmt.Printf("safety_code_type: %v\n", cfg.SafetyCodeType)
		fmt.Printf("m_w_a: %d\n", cfg.MWA)
		fmt.Printf("n_send_max: %d\n", cfg.NSendMax)
		fmt.Printf("n_diag_window: %d\n", cfg.NDiagWindow)
		for _, c := range cfg.Connections {
			fmt.Printf("connection[%d]: sender_id=%d receiver_id=%d\n", c.ConnectionID, c.SenderID, c.ReceiverID)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
