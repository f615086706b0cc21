package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/o2csim/o2csim/pkg/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulation API server",
	Long: `Start an HTTP server exposing the simulator.

The server provides:
  - POST /api/simulate and /api/simulate/batch
  - Asynchronous batch jobs with progress streaming (/api/jobs)
  - Baseline, vocabulary and health endpoints

Examples:
  o2csim serve                        # Listen on the configured port (8080)
  o2csim serve --port 3000            # Custom port
  o2csim serve --host 0.0.0.0         # Listen on all interfaces
  o2csim serve --artifact s3://models/o2c.json`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, e, cleanup, err := setup(ctx, newLogger("engine"))
	if err != nil {
		return err
	}
	defer cleanup()

	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	srv := server.NewServer(e, cfg.Server, newLogger("server"))
	defer srv.Close()

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	url := fmt.Sprintf("http://%s", addr)
	if cfg.Server.Host == "0.0.0.0" || cfg.Server.Host == "" {
		url = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	mode := "model " + e.ModelVersion()
	if e.Degraded() {
		mode = "degraded (rule-based)"
	}

	fmt.Println()
	fmt.Println("  ╭─────────────────────────────────────╮")
	fmt.Println("  │         O2CSIM SERVER               │")
	fmt.Println("  ├─────────────────────────────────────┤")
	fmt.Printf("  │  Local:   %-25s │\n", url)
	if cfg.Server.Host == "0.0.0.0" {
		if ip := getOutboundIP(); ip != "" {
			fmt.Printf("  │  Network: http://%-18s │\n", fmt.Sprintf("%s:%d", ip, cfg.Server.Port))
		}
	}
	fmt.Printf("  │  Mode:    %-25s │\n", mode)
	fmt.Println("  │                                     │")
	fmt.Println("  │  Press Ctrl+C to stop               │")
	fmt.Println("  ╰─────────────────────────────────────╯")
	fmt.Println()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// getOutboundIP gets the preferred outbound IP.
func getOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
