package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/nstehr/vimy/vimy-build/agent"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/ipc"
	"github.com/nstehr/vimy/vimy-build/rules"
	"github.com/nstehr/vimy/vimy-build/search"
)

const banner = `
██╗   ██╗██╗███╗   ███╗██╗   ██╗
██║   ██║██║████╗ ████║╚██╗ ██╔╝
██║   ██║██║██╔████╔██║ ╚████╔╝
╚██╗ ██╔╝██║██║╚██╔╝██║  ╚██╔╝
 ╚████╔╝ ██║██║ ╚═╝ ██║   ██║
  ╚═══╝  ╚═╝╚═╝     ╚═╝   ╚═╝

Build-Order Planning Sidecar`

func main() {
	socketPath := flag.String("socket", "/tmp/vimy-build.sock", "unix socket to listen on")
	configPath := flag.String("config", "", "search config YAML (defaults when empty)")
	catalogPath := flag.String("catalog", "", "unit catalog JSON (embedded catalog when empty)")
	goalsPath := flag.String("goals", "", "goal rules YAML, reloaded on change (built-in goals when empty)")
	rps := flag.Float64("rate", 4, "searches per second across all connections")
	debug := flag.Bool("debug", false, "log every search generation")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	fmt.Println(banner)

	slog.Info("starting vimy-build")

	table, err := loadCatalog(*catalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	cfg := search.DefaultConfig()
	if *configPath != "" {
		if cfg, err = search.LoadConfig(*configPath); err != nil {
			slog.Error("failed to load search config", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := rules.NewEngine(table, rules.DefaultGoals())
	if err != nil {
		slog.Error("failed to compile goals", "error", err)
		os.Exit(1)
	}
	if *goalsPath != "" {
		reloader := agent.NewGoalReloader(engine, *goalsPath, 5*time.Second)
		if _, err := reloader.Check(); err != nil {
			slog.Error("failed to load goals", "path", *goalsPath, "error", err)
			os.Exit(1)
		}
		go reloader.Start(ctx)
	}
	slog.Info("goals loaded", "goals", engine.Names())

	planner := agent.NewPlanner(table, engine, cfg, rate.Limit(*rps), max(1, int(*rps)))

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(*socketPath); err != nil {
		slog.Error("failed to clean up socket", "path", *socketPath, "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("unix", *socketPath)
	if err != nil {
		slog.Error("failed to listen on socket", "path", *socketPath, "error", err)
		os.Exit(1)
	}
	defer listener.Close()
	defer os.Remove(*socketPath)

	slog.Info("listening on domain socket", "path", *socketPath)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("failed to accept connection", "error", err)
					continue
				}
			}
			slog.Info("new connection accepted")
			go handleConn(ctx, conn, planner)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

func loadCatalog(path string) (*catalog.Table, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

func handleConn(ctx context.Context, conn net.Conn, planner *agent.Planner) {
	c := ipc.NewConnection(conn, nil)
	a := agent.New(ctx, c, planner)
	c.Handle(ipc.TypeHello, a.HandleHello)
	c.Handle(ipc.TypePlanRequest, a.HandlePlanRequest)

	// Unblock Serve on shutdown.
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	c.Serve()
}
