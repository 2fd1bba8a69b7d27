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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/globestitch/internal/globe"
	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/internal/server"
)

// version is reported by the health endpoint.
const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the globe texture API",
	Long: `Start an HTTP server that renders globe textures on request.

Requests for the same texture share one pipeline: a newer request cancels
the pass still in flight for that texture.

Examples:
  # Start server on default port 8080
  globestitch serve

  # Start server on custom port
  globestitch serve --port 3000

  # Start server with custom bind address and tile source
  globestitch serve --bind 0.0.0.0 --url 'https://tile.opentopomap.org/{z}/{x}/{y}.png'`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 60*time.Second, "request timeout")
	serveCmd.Flags().Int("max-size", server.DefaultMaxEdge, "largest texture edge a client may request")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.max-size", serveCmd.Flags().Lookup("max-size"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")

	addr := fmt.Sprintf("%s:%d", bind, port)

	opts, err := fetchOptions()
	if err != nil {
		return err
	}
	defaults, err := globeConfig()
	if err != nil {
		return err
	}
	defaults.TargetEdgePixels = globe.DefaultEdgePixels

	apiServer := server.NewServer(version, globe.HTTPSources(opts),
		server.WithDefaults(defaults),
		server.WithMaxEdge(viper.GetInt("server.max-size")),
	)
	defer apiServer.Close()

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     server.NewRouter(apiServer, timeout),
		ReadTimeout: timeout,
		// Leave room to stream the PNG after the handler deadline.
		WriteTimeout: timeout + 10*time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		apiServer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Logger().Error("server shutdown error", "error", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting globestitch server on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/api/v1/health\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Globe endpoint: http://%s/api/v1/globe?size=1024\n", addr)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
