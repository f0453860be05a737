package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/statifier/pkg/config"
	"github.com/Sriram-PR/statifier/pkg/crawler"
	"github.com/Sriram-PR/statifier/pkg/statification"
	"github.com/Sriram-PR/statifier/pkg/storage"
	"github.com/Sriram-PR/statifier/pkg/utils"
	"github.com/Sriram-PR/statifier/pkg/watch"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runStatify(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("statifier %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `statifier - Website mirroring into static snapshots

Usage:
  statifier <command> [options]

Commands:
  run         Statify the configured site in the foreground
  watch       Re-statify the site on a schedule
  validate    Validate configuration file
  list        List stored statifications
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'statifier <command> -h' for command-specific help.`)
}

// siteFlags are the per-run overrides shared by several subcommands
type siteFlags struct {
	configFile string
	urls       string
	domains    string
	output     string
	logLevel   string
}

func (f *siteFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configFile, "config", "", "Path to config file (optional when -urls, -domains and -output are given)")
	fs.StringVar(&f.urls, "urls", "", "Comma-separated seed URLs (overrides config)")
	fs.StringVar(&f.domains, "domains", "", "Comma-separated domain allow-list (overrides config)")
	fs.StringVar(&f.output, "output", "", "Mirror output directory (overrides config)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
}

// loadConfig loads and parses the config file. An empty path yields an empty configuration.
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// applyOverrides copies non-empty CLI flags over the file configuration
func applyOverrides(cfg *config.AppConfig, f siteFlags) {
	if f.urls != "" {
		cfg.Site.URLs = f.urls
	}
	if f.domains != "" {
		cfg.Site.Domains = f.domains
	}
	if f.output != "" {
		cfg.Site.OutputDir = f.output
	}
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// prepareConfig loads, overrides and validates the configuration, logging warnings
func prepareConfig(f siteFlags, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(f.configFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(appCfg, f)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	logAppConfig(appCfg, log)
	return appCfg, nil
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Workers:%d, MaxReqPerHost:%d, Delay:%v, FetchTimeout:%v, Dedup:%s",
		appCfg.NumWorkers, appCfg.MaxRequestsPerHost, appCfg.RequestDelay, appCfg.FetchTimeout, appCfg.DedupMode)
	log.Infof("Config: StateDir:%s, OutputDir:%s, Log:%s, Lock:%s",
		appCfg.StateDir, appCfg.Site.OutputDir, appCfg.CrawlLogFile, appCfg.LockFile)
	log.Debugf("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
}

// openService opens the record store under the state directory and builds the service around it
func openService(appCfg *config.AppConfig, log *logrus.Logger) (*statification.Service, *storage.BadgerStore, error) {
	if err := os.MkdirAll(appCfg.StateDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("%w: creating state directory '%s': %w", utils.ErrFilesystem, appCfg.StateDir, err)
	}
	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "storage"))
	if err != nil {
		return nil, nil, err
	}
	return statification.NewService(appCfg, store, log.WithField("component", "cli"), crawler.Options{}), store, nil
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// runStatify handles the run subcommand
func runStatify(args []string) {
	var sf siteFlags
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	sf.register(fs)
	designation := fs.String("designation", "", "Snapshot name (defaults to the current date)")
	description := fs.String("description", "", "Snapshot description")
	user := fs.String("user", os.Getenv("USER"), "User recorded in the snapshot history")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: statifier run [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  statifier run -config config.yaml\n")
		fmt.Fprintf(os.Stderr, "  statifier run -urls https://example.com/ -domains example.com -output ./mirror\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := setupLogger(sf.logLevel, os.Stderr)
	startPprof(*pprofAddr, log)
	os.Exit(doRun(ctx, sf, *designation, *description, *user, log, os.Stdout))
}

// doRun statifies the site and blocks until the run settles. Returns the exit code.
func doRun(ctx context.Context, sf siteFlags, designation, description, user string, log *logrus.Logger, stdout io.Writer) int {
	appCfg, err := prepareConfig(sf, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	svc, store, err := openService(appCfg, log)
	if err != nil {
		log.Errorf("Opening statification store: %v", err)
		return 1
	}
	defer store.Close()

	if designation == "" {
		designation = "Statification " + time.Now().Format("2006-01-02 15:04")
	}
	job, err := svc.Start(ctx, designation, description, user)
	if err != nil {
		log.Errorf("Statification refused [%s]: %v", utils.CategorizeError(err), err)
		return 1
	}

	record, err := job.Wait()
	snap := job.Status()
	if err != nil {
		log.Errorf("Statification %s: %v", snap.Status, err)
		return 1
	}

	fmt.Fprintf(stdout, "Statification '%s' %s\n", record.Designation, record.Status)
	fmt.Fprintf(stdout, "  Items received:  %d\n", record.ItemCount)
	fmt.Fprintf(stdout, "  Files saved:     %d\n", snap.Stats.Saved)
	fmt.Fprintf(stdout, "  HTTP errors:     %d\n", len(record.HTMLErrors))
	fmt.Fprintf(stdout, "  Forbidden types: %d\n", len(record.MimeErrors))
	fmt.Fprintf(stdout, "  External links:  %d\n", len(record.ExternalLinks))
	fmt.Fprintf(stdout, "  Crawl errors:    %d\n", len(record.CrawlErrors))
	return 0
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	var sf siteFlags
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	sf.register(fs)
	interval := fs.String("interval", "24h", "Statification interval (e.g., 30m, 1h, 24h, 7d)")
	designation := fs.String("designation", "", "Prefix of scheduled snapshot names")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: statifier watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  statifier watch -config config.yaml -interval 24h\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(sf.logLevel, os.Stderr)

	every, err := watch.ParseInterval(*interval)
	if err != nil {
		log.Fatalf("Invalid interval: %v", err)
	}

	appCfg, err := prepareConfig(sf, log)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	svc, store, err := openService(appCfg, log)
	if err != nil {
		log.Fatalf("Opening statification store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go store.RunGC(gcCtx, time.Hour)

	scheduler := watch.NewScheduler(svc, every, *designation, log.WithField("component", "cli"))
	if err := scheduler.Run(ctx); err != nil {
		log.Errorf("Watch scheduler error: %v", err)
		return
	}
	log.Info("Watch mode stopped")
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	var sf siteFlags
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	sf.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: statifier validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(sf, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(sf siteFlags, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(sf.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	applyOverrides(appCfg, sf)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	site := appCfg.Site
	if len(site.SeedURLs()) == 0 || len(site.AllowedDomains()) == 0 || site.OutputDir == "" {
		fmt.Fprintln(stderr, "ERROR: urls, domains and output_dir are required to statify")
		return 1
	}

	fmt.Fprintf(stdout, "OK: %d seed url(s), %d domain(s), output to %s\n",
		len(site.SeedURLs()), len(site.AllowedDomains()), site.OutputDir)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runList handles the list subcommand
func runList(args []string) {
	var sf siteFlags
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	sf.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: statifier list [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doList(sf, os.Stdout, os.Stderr))
}

// doList prints the stored statifications. Returns exit code.
func doList(sf siteFlags, stdout, stderr io.Writer) int {
	log := setupLogger(sf.logLevel, stderr)
	log.SetLevel(logrus.WarnLevel)

	appCfg, err := loadConfig(sf.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	applyOverrides(appCfg, sf)
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "storage"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Statifications in %s:\n\n", appCfg.StateDir)
	for _, r := range records {
		commit := r.Commit
		if commit == "" {
			commit = "(in progress)"
		}
		fmt.Fprintf(stdout, "  %s\n", r.Designation)
		fmt.Fprintf(stdout, "    Commit: %s\n", commit)
		fmt.Fprintf(stdout, "    Status: %s\n", r.Status)
		fmt.Fprintf(stdout, "    Created: %s\n", r.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(stdout, "    Items: %d\n", r.ItemCount)
		fmt.Fprintln(stdout)
	}
	return 0
}
