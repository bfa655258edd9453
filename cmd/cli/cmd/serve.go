package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/btraceio/heapdump/internal/catalog"
	"github.com/btraceio/heapdump/internal/heapdump"
	"github.com/btraceio/heapdump/internal/repository"
	"github.com/btraceio/heapdump/internal/service/heapdumpsvc"
	"github.com/btraceio/heapdump/internal/webui"
	"github.com/btraceio/heapdump/pkg/config"
	"github.com/btraceio/heapdump/pkg/utils"
)

var (
	// Serve command flags
	dataDir  string
	port     int
	grpcPort int
	grpcConf string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web server to view analysis results",
	Long: `Start an HTTP server to interactively view and explore analysis results.

The serve command starts a lightweight web server that provides:
  - Interactive flame graph visualization
  - Top functions analysis
  - Thread statistics
  - Task switching between multiple analyses

The web UI uses d3-flame-graph for rendering interactive flame graphs
that support zooming, searching, and detailed tooltips.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Set dynamic example using actual binary name
	binName := BinName()
	serveCmd.Example = `  # Start server with default settings (port 8080, ./output directory)
  ` + binName + ` serve

  # Specify data directory and port
  ` + binName + ` serve -d ./my-output -p 9090

  # Start server with verbose logging
  ` + binName + ` serve -d ./output -v`

	serveCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "./output", "Data directory containing analysis results")
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for web server")
	serveCmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "Port for the heap dump query gRPC service (0 disables it)")
	serveCmd.Flags().StringVar(&grpcConf, "config", "", "Config file to read database settings from (for --grpc-port's index catalog)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	if grpcPort > 0 {
		stop, err := startHeapdumpGRPCServer(grpcConf, grpcPort, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	return startServeMode(dataDir, port, log)
}

// startHeapdumpGRPCServer starts the heapdumpsvc gRPC server on grpcPort. If
// cfgPath loads successfully, catalog lookups are backed by the configured
// database; otherwise the server runs with no catalog (every query falls
// back to the engine's default index-directory resolution).
func startHeapdumpGRPCServer(cfgPath string, grpcPort int, log utils.Logger) (func(), error) {
	var catalogStore catalog.Store
	if cfg, err := config.Load(cfgPath); err == nil {
		dbConfig := &repository.DBConfig{
			Type:     cfg.Database.Type,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			MaxConns: cfg.Database.MaxConns,
		}
		if gormDB, err := repository.NewGormDB(dbConfig); err == nil {
			if err := catalog.Migrate(gormDB); err == nil {
				catalogStore = catalog.NewGormStore(gormDB)
			} else {
				log.Warn("heapdump grpc: catalog migration failed, running without a catalog: %v", err)
			}
		} else {
			log.Warn("heapdump grpc: database unavailable, running without an index catalog: %v", err)
		}
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return nil, fmt.Errorf("heapdump grpc: listen: %w", err)
	}

	engineOpts := heapdump.DefaultOptions()
	engineOpts.Logger = log
	grpcServer := grpc.NewServer()
	heapdumpsvc.Register(grpcServer, heapdumpsvc.NewServer(engineOpts, catalogStore, log))

	go func() {
		log.Info("Heap dump gRPC service listening on :%d", grpcPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Warn("heapdump grpc: server stopped: %v", err)
		}
	}()

	return grpcServer.GracefulStop, nil
}

// startServeMode is shared between analyze --serve and serve command
func startServeMode(dataDirectory string, serverPort int, log utils.Logger) error {
	// Verify data directory exists
	if _, err := os.Stat(dataDirectory); os.IsNotExist(err) {
		return fmt.Errorf("data directory not found: %s", dataDirectory)
	}

	server := webui.NewServer(dataDirectory, serverPort, log)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("\nShutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5)
		defer cancel()
		server.Shutdown(ctx)
		os.Exit(0)
	}()

	// Print access URL
	log.Info("")
	log.Info("â•”â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•—")
	log.Info("â•‘  ðŸ”¥ Perf Analysis Viewer                               â•‘")
	log.Info("â•‘                                                        â•‘")
	log.Info("â•‘  Open in browser: http://localhost:%-5d               â•‘", serverPort)
	log.Info("â•‘  Data directory:  %-36s â•‘", truncateString(dataDirectory, 36))
	log.Info("â•‘                                                        â•‘")
	log.Info("â•‘  Press Ctrl+C to stop                                  â•‘")
	log.Info("â•šâ•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•â•")
	log.Info("")

	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
