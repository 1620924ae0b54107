package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/krisalay/swr-cache/config"
	"github.com/krisalay/swr-cache/logging"
)

var (
	configFile string
	addr       string
)

var rootCmd = &cobra.Command{
	Use:          "swrcache-server",
	Short:        "Serve slow aggregates over HTTP through a stale-while-revalidate cache",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}

		logging.Init(cfg.Log)
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		srv, err := NewAPIServer(cfg, &SimulatedSource{Latency: cfg.Server.QueryLatency})
		if err != nil {
			return err
		}
		srv.Start()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logging.GetLogger().Info("shutting down API server")
		srv.Stop()
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
