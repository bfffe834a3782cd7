package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/keepalive"
)

var (
	keepAliveEndpoint  string
	keepAliveTransport string
)

var keepAliveCmd = &cobra.Command{
	Use:   "keepalive <data>",
	Short: "Hold a module active on the development endpoint",
	Long: `Connect to the keep-alive endpoint for <data> and log every update until
interrupted. Failures are logged and the connection is retried with backoff.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeepAlive,
}

func init() {
	rootCmd.AddCommand(keepAliveCmd)
	keepAliveCmd.Flags().StringVar(&keepAliveEndpoint, "endpoint", "", "endpoint base (default: resourceQuery from config, else the local serve address)")
	keepAliveCmd.Flags().StringVar(&keepAliveTransport, "transport", "", "auto, eventsource or websocket")
}

func runKeepAlive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ka := cfg.KeepAlive
	switch {
	case keepAliveEndpoint != "":
		ka.ResourceQuery = "?" + url.QueryEscape(keepAliveEndpoint)
	case ka.ResourceQuery == "":
		ka.ResourceQuery = "?" + url.QueryEscape(fmt.Sprintf("http://%s%s", cfg.Addr(), cfg.Server.Prefix))
	}
	if keepAliveTransport != "" {
		ka.Transport = config.TransportName(keepAliveTransport)
	}

	client := keepalive.NewClient(ka, keepalive.WithLogger(logger))
	session, err := client.Open(keepalive.Options{
		Data:   args[0],
		Active: true,
		Module: keepalive.Module{Hot: true},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("keep-alive error")
		},
		OnUpdate: func(u keepalive.Update) {
			logger.Info().Str("type", u.Type).Strs("modules", u.Modules).Msg(u.Message)
		},
	})
	if err != nil {
		return err
	}
	logger.Info().Str("endpoint", session.Endpoint()).Str("session", session.ID()).Msg("keep-alive started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	session.Close()
	<-session.Done()
	logger.Info().Int("failures", session.Failures()).Msg("keep-alive stopped")
	return nil
}
