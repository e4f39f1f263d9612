package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jzakirov/openclaw-smartlead/internal/capture"
	"github.com/jzakirov/openclaw-smartlead/internal/config"
	"github.com/jzakirov/openclaw-smartlead/internal/dedup"
	"github.com/jzakirov/openclaw-smartlead/internal/events"
	"github.com/jzakirov/openclaw-smartlead/internal/forward"
	"github.com/jzakirov/openclaw-smartlead/internal/lock"
	"github.com/jzakirov/openclaw-smartlead/internal/log"
	"github.com/jzakirov/openclaw-smartlead/internal/tui/watch"
	"github.com/jzakirov/openclaw-smartlead/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	// Secrets commonly live in a .env next to the binary during development.
	_ = godotenv.Load()

	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "check":
		return runCheck(args)
	case "events":
		return runEvents(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `smartlead-bridge - Smartlead webhook to agent hook bridge

Usage:
  smartlead-bridge start  [--config path]            Run the webhook server
  smartlead-bridge check  [--config path]            Validate configuration
  smartlead-bridge events [--config path] [--limit n] [--json]
                                                     List captured events
  smartlead-bridge watch  [--url u] [--secret s]     Live event tail TUI
  smartlead-bridge version [--json]                  Show version

Configuration is discovered from $SMARTLEAD_BRIDGE_CONFIG,
~/.config/smartlead-bridge/config.yaml, /etc/smartlead-bridge/config.yaml,
or ./config.yaml. With no file the bridge runs on defaults plus environment
variables (SMARTLEAD_WEBHOOK_SECRET, OPENCLAW_HOOK_URL, OPENCLAW_HOOK_TOKEN).
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("smartlead-bridge starting",
		"version", version,
		"listen", cfg.Listen,
		"config_hash", cfg.SourceHash,
	)

	pidLock, err := lock.Acquire(pidLockPath())
	if err != nil {
		logger.Error("failed to acquire PID lock", "error", err)
		return 1
	}
	defer pidLock.Release()

	if !cfg.Forward.Configured() {
		logger.Warn("forwarding disabled: forward.url or forward.token not set; events will be acknowledged but not delivered")
	}

	var recorder webhook.EventRecorder
	if cfg.Capture.Path != "" {
		store, err := capture.Open(context.Background(), cfg.Capture.Path)
		if err != nil {
			logger.Error("failed to open capture store", "path", cfg.Capture.Path, "error", err)
			return 1
		}
		defer store.Close()
		recorder = store
		logger.Info("capture store opened", "path", cfg.Capture.Path)
	}

	hub := events.NewHub(256)
	cache := dedup.NewCache(cfg.Webhook.DedupeTTL())
	fwd := forward.New(cfg.Forward, cfg.Service.Name, log.WithComponent("forward"))
	server := webhook.New(cfg, cache, fwd, hub, recorder, log.WithComponent("webhook"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("server exited with error", "error", err)
		return 1
	}

	logger.Info("smartlead-bridge stopped")
	return 0
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	resolved := *configPath
	if resolved == "" {
		discovered, err := config.Discover()
		if err != nil {
			fmt.Println("No config file found; the bridge would run on defaults plus environment variables.")
			resolved = ""
		} else {
			resolved = discovered
		}
	}

	cfg, err := config.LoadOrDefault(resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		return 1
	}

	if resolved != "" {
		fmt.Printf("Config file:      %s\n", resolved)
		fmt.Printf("Config hash:      %s\n", cfg.SourceHash)
	}
	fmt.Printf("Listen:           %s\n", cfg.Listen)
	fmt.Printf("Webhook path:     %s\n", cfg.Webhook.Path)
	fmt.Printf("Secret:           %s\n", configuredWord(cfg.Webhook.Secret != ""))
	fmt.Printf("Max body:         %d bytes\n", cfg.Webhook.MaxBodyBytes)
	fmt.Printf("Dedupe TTL:       %ds\n", cfg.Webhook.DedupeTTLSeconds)
	fmt.Printf("Accepted events:  %s\n", strings.Join(cfg.Webhook.AcceptedEvents, ", "))
	fmt.Printf("Forwarding:       %s\n", configuredWord(cfg.Forward.Configured()))
	if cfg.Forward.Configured() {
		fmt.Printf("Forward timeout:  %dms\n", cfg.Forward.TimeoutMS)
	}
	fmt.Printf("Capture:          %s\n", orDisabled(cfg.Capture.Path))

	fmt.Println("Status: Configuration check PASSED.")
	return 0
}

func runEvents(args []string) int {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "Number of events to show")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Capture.Path == "" {
		fmt.Fprintln(os.Stderr, "Capture is not configured (set capture.path in config).")
		return 1
	}

	store, err := capture.Open(context.Background(), cfg.Capture.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open capture store: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read events: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(records) == 0 {
		fmt.Println("No events captured yet.")
		return 0
	}

	fmt.Printf("%-25s %-15s %-16s %-12s %s\n", "TIME", "OUTCOME", "EVENT", "CAMPAIGN", "LEAD")
	for _, rec := range records {
		campaign := "-"
		if rec.CampaignID != nil {
			campaign = fmt.Sprintf("%d", *rec.CampaignID)
		}
		lead := rec.LeadEmail
		if lead == "" {
			lead = "-"
		}
		fmt.Printf("%-25s %-15s %-16s %-12s %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Outcome, rec.EventType, campaign, lead)
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	url := fs.String("url", "", "Webhook URL (default: derived from config)")
	secret := fs.String("secret", "", "Webhook secret (default: from config)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	baseURL := *url
	watchSecret := *secret
	if baseURL == "" || watchSecret == "" {
		cfg, err := config.LoadOrDefault(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		if baseURL == "" {
			baseURL = "http://" + cfg.Listen + cfg.Webhook.Path
		}
		if watchSecret == "" {
			watchSecret = cfg.Webhook.Secret
		}
	}

	if err := watch.Run(baseURL, watchSecret); err != nil {
		fmt.Fprintf(os.Stderr, "Watch TUI failed: %v\n", err)
		return 1
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(gitCommit),
		BuildTime: strings.TrimSpace(buildDate),
	}

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("smartlead-bridge %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func pidLockPath() string {
	if p := os.Getenv("SMARTLEAD_BRIDGE_PIDFILE"); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "smartlead-bridge.pid")
}

func configuredWord(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
