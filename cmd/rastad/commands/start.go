package commands

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/cmd/rastad/demo"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/codec"
	rastaconfig "github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/config"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/engine"
	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/pkg/rasta"
)

var tickDuration time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the client/server establishment demo",
	Long: `Loads a RaSTA network configuration (or built-in demo defaults if
none is found), wires a client and a server stack together over an
in-memory loopback channel, opens the connection from the client side,
and ticks both stacks until the connection reaches the Up state, then
exchanges one data message before shutting down.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().DurationVar(&tickDuration, "duration", 5*time.Second, "how long to run the demo before exiting")
}

func runStart(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := rastaconfig.Load(GetConfigFile())
	if err != nil {
		log.WithError(err).Warn("no usable config found, falling back to built-in demo defaults")
		cfg = demoConfig()
	}

	clientCfg := withConnection(cfg, engine.ConnectionConfig{ConnectionID: 0, SenderID: 1, ReceiverID: 2})
	serverCfg := withConnection(cfg, engine.ConnectionConfig{ConnectionID: 0, SenderID: 2, ReceiverID: 1})

	lb := demo.NewLoopback()

	var clientStack, serverStack *rasta.Stack

	clientSide := lb.Side(true, func() { clientStack.MessageReceivedNotification(0) })
	serverSide := lb.Side(false, func() { serverStack.MessageReceivedNotification(0) })

	clientLog := logrus.NewEntry(log)
	serverLog := logrus.NewEntry(log)

	clientStack = rasta.New(clientSide, demo.NewSystemClock(fatalLogger(log, "client")), demo.NewLoggingNotifier(clientLog, "client"), rasta.WithLogger(clientLog))
	serverStack = rasta.New(serverSide, demo.NewSystemClock(fatalLogger(log, "server")), demo.NewLoggingNotifier(serverLog, "server"), rasta.WithLogger(serverLog))

	if err := clientStack.Init(clientCfg); err != nil {
		return fmt.Errorf("initializing client stack: %w", err)
	}
	if err := serverStack.Init(serverCfg); err != nil {
		return fmt.Errorf("initializing server stack: %w", err)
	}

	// The server is opened first so it is waiting in Down when the
	// client's ConnReq arrives.
	if _, err := serverStack.OpenConnection(2, 1, serverCfg.RastaNetworkID); err != nil {
		return fmt.Errorf("opening server connection: %w", err)
	}
	if _, err := clientStack.OpenConnection(1, 2, clientCfg.RastaNetworkID); err != nil {
		return fmt.Errorf("opening client connection: %w", err)
	}

	deadline := time.Now().Add(tickDuration)
	sentData := false
	for time.Now().Before(deadline) {
		if err := clientStack.Tick(); err != nil {
			return fmt.Errorf("ticking client stack: %w", err)
		}
		if err := serverStack.Tick(); err != nil {
			return fmt.Errorf("ticking server stack: %w", err)
		}

		if state, _, _, _ := clientStack.GetConnectionState(0); state == rasta.StateUp && !sentData {
			if err := clientStack.SendData(0, []byte("hello from the rastad demo")); err != nil {
				log.WithError(err).Warn("send data failed")
			} else {
				sentData = true
			}
		}

		if payload, err := serverStack.ReadData(0); err == nil {
			log.WithField("payload", string(payload)).Info("server received application data")
		}

		time.Sleep(10 * time.Millisecond)
	}

	clientState, _, _, _ := clientStack.GetConnectionState(0)
	serverState, _, _, _ := serverStack.GetConnectionState(0)
	log.WithFields(logrus.Fields{"client_state": clientState, "server_state": serverState}).Info("demo finished")

	_ = clientStack.CloseConnection(0, 0)
	_ = serverStack.CloseConnection(0, 0)
	return nil
}

func fatalLogger(log *logrus.Logger, side string) func(kind string) {
	return func(kind string) {
		log.WithField("side", side).Errorf("fatal condition: %s", kind)
	}
}

func withConnection(cfg rasta.Config, cc engine.ConnectionConfig) rasta.Config {
	out := cfg
	out.Connections = []engine.ConnectionConfig{cc}
	return out
}

func demoConfig() rasta.Config {
	return engine.Config{
		RastaNetworkID: 1,
		TMax:           1500,
		TH:             500,
		SafetyCodeType: codec.SafetyCodeLowerMd4,
		MWA:            5,
		NSendMax:       10,
		NDiagWindow:    100,
		MD4Init:        engine.MD4Init{A: 0x67452301, B: 0xefcdab89, C: 0x98badcfe, D: 0x10325476},
		DiagIntervals:  diag.Intervals{100, 300, 600, 1000},
	}
}
