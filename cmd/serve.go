package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance API server.
The server accepts camera frames for check-in, employee registrations,
punch-outs and office settings changes under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("allowed-origins", "", "Comma-separated CORS origins allowed besides localhost")
}

// resolveServeOptions resolves listener options from flags and environment variables.
func resolveServeOptions(cmd *cobra.Command) web.Options {
	opts := web.Options{
		Port:           mustGetInt(cmd, "port"),
		Host:           mustGetString(cmd, "host"),
		AllowedOrigins: mustGetString(cmd, "allowed-origins"),
	}

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &opts.Port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		opts.Host = envHost
	}
	if opts.AllowedOrigins == "" {
		opts.AllowedOrigins = os.Getenv("WEB_ALLOWED_ORIGINS")
	}
	return opts
}

// lifecycle is the part of web.Server driven by serveUntilSignal
type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serveUntilSignal runs server until a value arrives on stop. It returns only
// after Shutdown has drained in-flight requests or the timeout expired.
func serveUntilSignal(server lifecycle, stop <-chan os.Signal, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		if _, ok := <-stop; !ok {
			return
		}
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		done <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("during shutdown: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := a.client.Ping(pingCtx); err != nil {
		a.logger.WithError(err).WithField("url", a.client.BaseURL()).
			Warn("Embedding server is not reachable, recognition will fail until it is up")
	}
	pingCancel()

	if n, err := a.store.CountIdentities(ctx); err == nil {
		a.logger.WithField("employees", n).Info("Database ready")
	}

	opts := resolveServeOptions(cmd)
	server := web.NewServer(web.Services{
		Store:      a.store,
		Index:      a.index,
		Guard:      a.guard,
		Pipeline:   a.pipeline,
		Attendance: a.attendance,
	}, opts, a.logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Printf("Starting Face Attendance API on http://%s:%d/api/v1\n", opts.Host, opts.Port)
	fmt.Println("Press Ctrl+C to stop")

	// a.close runs after every handler has returned
	return serveUntilSignal(server, sigChan, 30*time.Second)
}
