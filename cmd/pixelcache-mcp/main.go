package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ironsheep/pixel-cache/internal/cache"
	"github.com/ironsheep/pixel-cache/internal/config"
	"github.com/ironsheep/pixel-cache/internal/logging"
	"github.com/ironsheep/pixel-cache/internal/magick"
	"github.com/ironsheep/pixel-cache/internal/metrics"
	"github.com/ironsheep/pixel-cache/internal/parallel"
	"github.com/ironsheep/pixel-cache/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	fs := flag.NewFlagSet("pixelcache-mcp", flag.ExitOnError)
	showVersion := fs.Bool("version", false, "Print version information")
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	fs.BoolVar(showVersion, "v", false, "Print version information (shorthand)")
	fs.Usage = usage
	_ = fs.Parse(os.Args[1:])

	if *showVersion || fs.Arg(0) == "version" {
		fmt.Printf("pixelcache-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}
	if fs.Arg(0) == "help" {
		usage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixelcache-mcp: %v\n", err)
		os.Exit(1)
	}

	// Logging goes to stderr; stdout is for MCP protocol
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.LogLevel),
	}))
	logging.SetLogger(logger)
	logger.Debug("pixel cache MCP server starting",
		"version", Version, "build_time", BuildTime, "commit", GitCommit)

	parallel.SetMaxConcurrency(cfg.Threads)
	// Views are sized by MaxConcurrency, so it must fit the nexus limit.
	if limit := cfg.Cache.ThreadLimit; limit > 0 && parallel.MaxConcurrency() > limit {
		parallel.SetMaxConcurrency(limit)
	}
	if cfg.Metrics.Addr != "" {
		metrics.ServeMetrics(cfg.Metrics.Addr)
	}

	server.Version = Version
	srv := server.New(magick.WithCacheOptions(cache.Options{
		MemoryLimit:  cfg.Cache.MemoryLimit,
		DiskLimit:    cfg.Cache.DiskLimit,
		ThreadLimit:  cfg.Cache.ThreadLimit,
		TempDir:      cfg.Cache.TmpDir,
		RowCacheRows: cfg.Cache.RowCacheRows,
	}))
	defer srv.Close()

	if err := srv.Run(); err != nil {
		logger.Error("server error", "err", err)
		srv.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("pixelcache-mcp - MCP server for pixel cache access")
	fmt.Println()
	fmt.Println("Usage: pixelcache-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v      Print version information")
	fmt.Println("  --help, -h         Print this help message")
	fmt.Println("  --config FILE      Load settings from a TOML file")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  PIXELCACHE_LOG_LEVEL=debug      Log level (debug, info, warn, error)")
	fmt.Println("  PIXELCACHE_THREADS=N            Workers per cache view (0 = GOMAXPROCS)")
	fmt.Println("  PIXELCACHE_MEMORY_LIMIT=256MiB  Largest image kept in memory")
	fmt.Println("  PIXELCACHE_DISK_LIMIT=4GiB      Largest image spilled to disk")
	fmt.Println("  PIXELCACHE_THREAD_LIMIT=N       Maximum workers per cache view")
	fmt.Println("  PIXELCACHE_TMPDIR=DIR           Directory for disk caches")
	fmt.Println("  PIXELCACHE_ROW_CACHE_ROWS=N     Rows kept resident for disk caches")
	fmt.Println("  PIXELCACHE_METRICS_ADDR=:9100   Serve Prometheus metrics")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
