package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/sessionbridge/internal/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sessionbridge server",
	Long: `Starts the HTTP server. Every request passes the bridge: a request with a session
token in the Authorization header is authenticated natively, a request carrying an
external identity token is exchanged for a session token before it reaches the handler.`,
	Example: `  # run with a configuration file
  sessionbridge serve -c bridge.yaml

  # run from environment only
  BRIDGE_SESSION_SECRET=... BRIDGE_EXTERNAL_ISSUER=https://dev-123.okta.com/oauth2/default sessionbridge serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")

		cfg, err := f.LoadConfig()
		if err != nil {
			return err
		}

		log.Info().Msg("Initializing bridge...")
		stack, err := BuildStack(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stack.Close(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to release resources")
			}
		}()

		var opts []api.Option
		if h := stack.Metrics.Handler(); h != nil {
			opts = append(opts, api.WithMetricsHandler(h))
		}
		srv := api.NewServer(stack.Authenticator, stack.Accounts, stack.Issuer, stack.Auditor, opts...)

		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("issuer", cfg.External.Issuer).
				Str("header", stack.Authenticator.Header()).
				Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server crashed: %w", err)
			}
		}
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", ":8080", "address to listen on")
}
