package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xsukax/securechat/api/websocket"
	"github.com/xsukax/securechat/config"
	"github.com/xsukax/securechat/dashboard"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "securechatd",
	Version: config.Version,
	Short:   "securechatd - encrypted chat relay daemon",
	Long:    "",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := relayMain(); err != nil {
			logrus.Error(err)
		}
		return nil
	},
}

var (
	wsPort  uint16
	webPort uint16
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&config.ConfigFile, "config", "", "config file name")
	rootCmd.Flags().Uint16Var(&wsPort, "port", 0, "websocket listen port (overrides config)")
	rootCmd.Flags().Uint16Var(&webPort, "web-port", 0, "status web service port (overrides config)")
	rootCmd.Flags().BoolVar(&config.Debug, "debug", false, "enable debug logging")
}

func relayMain() error {
	err := config.Init()
	if err != nil {
		return err
	}
	if wsPort != 0 {
		config.Parameters.HttpWsPort = wsPort
	}
	if webPort != 0 {
		config.Parameters.WebServicePort = webPort
	}

	initLog()

	logrus.Infof("relay version: %v", config.Version)

	ws := websocket.NewServer()

	dashboard.Init(ws)
	go dashboard.Start()

	go func() {
		if err := ws.Start(); err != nil {
			logrus.WithError(err).Error("websocket relay")
			os.Exit(1)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	for range signalChan {
		fmt.Println("\nReceived an interrupt, stopping services...")
		ws.Stop()
		return nil
	}

	return nil
}

func initLog() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(config.Parameters.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if config.Debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}
