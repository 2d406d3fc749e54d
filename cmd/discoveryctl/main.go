package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sitescout/discovery/internal/config"
	"github.com/sitescout/discovery/internal/logging"
	"github.com/sitescout/discovery/internal/persistwriter"
	"github.com/sitescout/discovery/pkg/engine"
)

var (
	version = "1.0.0"

	depthCap    int
	pageCap     int
	noSitemap   bool
	loginURL    string
	username    string
	password    string
	inContainer bool
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "discoveryctl",
		Short:   "discoveryctl - authenticated website discovery engine",
		Long:    "discoveryctl crawls a site under an authenticated session and maps the pages and links it can reach.",
		Version: version,
	}

	discoverCmd := &cobra.Command{
		Use:   "discover [project-id] [url]",
		Short: "Run one discovery crawl and print the resulting graph",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiscover,
	}
	discoverCmd.Flags().IntVar(&depthCap, "depth-cap", 0, "Maximum link depth (0 = engine default)")
	discoverCmd.Flags().IntVar(&pageCap, "page-cap", 0, "Maximum pages to discover (0 = engine default)")
	discoverCmd.Flags().BoolVar(&noSitemap, "no-sitemap", false, "Skip sitemap.xml seeding")
	discoverCmd.Flags().StringVar(&loginURL, "login-url", "", "Login page URL; omit to crawl anonymously")
	discoverCmd.Flags().StringVarP(&username, "username", "u", "", "Username for authentication")
	discoverCmd.Flags().StringVarP(&password, "password", "p", "", "Password for authentication")
	discoverCmd.Flags().BoolVar(&inContainer, "in-container", false, "Running inside a container: turns off the local-target timeout hint (URLs are not rewritten)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose Prometheus metrics on --metrics-addr until interrupted",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address to serve /metrics on")

	rootCmd.AddCommand(discoverCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	projectID, target := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{
		Level:     logging.InfoLevel,
		Pretty:    cfg.LogPretty,
		Component: "discoveryctl",
	})

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	eng, err := engine.New(store, log,
		engine.WithPoolSize(cfg.BrowserPoolSize),
		engine.WithHeadless(cfg.HeadlessBrowser),
		engine.WithInContainer(cfg.InContainer || inContainer),
		engine.WithProbeTimeout(cfg.ReachabilityDeadline),
		engine.WithMenuPhaseBudget(cfg.MenuPhaseBudget),
		engine.WithMenuCandidateCap(cfg.MenuCandidateCap),
		engine.WithThumbnailCutoff(cfg.ThumbnailCutoff),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close()

	req := engine.StartDiscoveryRequest{
		ProjectID:   projectID,
		RootURL:     target,
		DepthCap:    depthCap,
		PageCap:     pageCap,
		InContainer: cfg.InContainer || inContainer,
	}
	if noSitemap {
		useSitemap := false
		req.UseSitemap = &useSitemap
	}
	if loginURL != "" {
		req.Recipe = &engine.LoginRecipe{
			LoginURL: loginURL,
			Username: username,
			Password: password,
			Mode:     "auto",
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "received interrupt, stopping crawl...")
		cancel()
	}()

	start := time.Now()
	result, err := eng.StartDiscovery(ctx, req)
	duration := time.Since(start)
	if result == nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	printSummary(result, duration)
	if err != nil {
		return fmt.Errorf("discovery finished with errors: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}

func openStore(cfg *config.Config, log *logging.Logger) (persistwriter.Store, func(), error) {
	if cfg.UsePostgres {
		store, err := persistwriter.NewPostgresStore(context.Background(), cfg.PostgresDSN, log.Zerolog())
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(context.Background()); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return store, func() { store.Close() }, nil
	}

	store, err := persistwriter.NewBoltStore(cfg.BoltStatePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func printSummary(result *engine.DiscoveryResult, duration time.Duration) {
	fmt.Println()
	fmt.Println("Discovery summary")
	fmt.Printf("  status:   %s\n", result.Status)
	fmt.Printf("  duration: %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  pages:    %d\n", len(result.Pages))
	fmt.Printf("  edges:    %d\n", len(result.Edges))
	fmt.Printf("  failures: %d\n", len(result.Failures))
	fmt.Println()

	count := len(result.Pages)
	if count > 15 {
		count = 15
	}
	for i := 0; i < count; i++ {
		p := result.Pages[i]
		fmt.Printf("  [%d] %-6s %s\n", p.Depth, p.PageType, p.URL)
	}
	if len(result.Pages) > count {
		fmt.Printf("  ... and %d more\n", len(result.Pages)-count)
	}
}
