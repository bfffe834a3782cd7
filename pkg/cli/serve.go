package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/withgalaxy/lazyload/pkg/hmr"
)

var (
	servePort  int
	serveHost  string
	serveWatch string
	serveOpen  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the keep-alive development endpoint",
	Long: `Start the development endpoint keep-alive clients connect to. Files under the
watch directory are hashed; when an active module changes every client holding
it receives an update.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "directory to watch (default from config)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the endpoint in a browser on start")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if serveWatch != "" {
		cfg.Server.WatchDir = serveWatch
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := hmr.NewServer(cfg.Server.Prefix, hmr.WithLogger(logger), hmr.WithAllowedOrigins(cfg.Server.AllowOrigins))
	srv.Start()
	defer srv.Close()

	watchDir, err := resolveDir(cfg.Server.WatchDir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(watchDir); err == nil {
		watcher, err := hmr.NewWatcher(watchDir, srv, logger)
		if err != nil {
			return fmt.Errorf("watch %s: %w", watchDir, err)
		}
		go watcher.Run(ctx)
		logger.Info().Str("dir", watchDir).Msg("watching for changes")
	} else {
		logger.Warn().Str("dir", watchDir).Msg("watch directory not found, updates disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           hmr.LogRequests(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	base := fmt.Sprintf("http://%s%s", cfg.Addr(), srv.Prefix())
	logger.Info().Str("endpoint", base).Msg("keep-alive endpoint listening")
	if serveOpen {
		openBrowser(fmt.Sprintf("http://%s/health", cfg.Addr()))
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
