package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/crawl"
	"github.com/baont182004/BiLSTM-defacement/internal/scraper"

	"github.com/spf13/cobra"
)

type crawlFlags struct {
	startID          int64
	baseURL          string
	store            string
	captchaMode      string
	captchaTimeoutMs string
}

// crawlDriverFunc starts the browser the walker drives and returns its release func
type crawlDriverFunc func(ctx context.Context, cfg config.Config) (crawl.Driver, func(), error)

func (a *app) crawlCmd() *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Walk mirror ids downwards and collect one field per page",
		Long: `Walk {base-url}/{id} from --start-id down to 1, extract the labelled field
of each page and append every new value to the store file. Values already in
the store are skipped, so an interrupted crawl can be restarted safely.
SIGINT or SIGTERM stops the walk after the current page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			launch := a.crawlDriver
			if launch == nil {
				launch = a.launchCrawlBrowser
			}
			return a.runCrawl(cmd, f, launch)
		},
	}
	cmd.Flags().Int64Var(&f.startID, "start-id", 0, "first id to visit (required)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "URL prefix the id is appended to")
	cmd.Flags().StringVar(&f.store, "store", "", "append-only file of collected values")
	cmd.Flags().StringVar(&f.captchaMode, "captcha-mode", "", "unattended or assist")
	cmd.Flags().StringVar(&f.captchaTimeoutMs, "captcha-timeout-ms", "", "how long to wait for a captcha to clear")
	_ = cmd.MarkFlagRequired("start-id")
	return cmd
}

func (f crawlFlags) applyFlags(cfg config.CrawlConfig) config.CrawlConfig {
	if v := strings.TrimSpace(f.baseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(f.store); v != "" {
		cfg.StorePath = v
	}
	switch strings.TrimSpace(f.captchaMode) {
	case config.CaptchaAssist:
		cfg.CaptchaMode = config.CaptchaAssist
	case config.CaptchaUnattended:
		cfg.CaptchaMode = config.CaptchaUnattended
	}
	cfg.CaptchaTimeoutMs = config.IntOr(f.captchaTimeoutMs, cfg.CaptchaTimeoutMs)
	return cfg
}

func (a *app) runCrawl(cmd *cobra.Command, f crawlFlags, launch crawlDriverFunc) error {
	if f.startID < 1 {
		return fmt.Errorf("--start-id must be at least 1, got %d", f.startID)
	}
	if f.baseURL != "" {
		if _, err := ensureScheme(f.baseURL); err != nil {
			return err
		}
	}

	cfg := a.cfg
	cfg.Crawl = f.applyFlags(cfg.Crawl)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, release, err := launch(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	store := crawl.NewFileStore(cfg.Crawl.StorePath)
	defer store.Close()

	esc := crawl.NewEscalator(cfg.Crawl.CaptchaMode, a.log, a.stderr, config.Ms(cfg.Crawl.CaptchaTimeoutMs))
	walker := crawl.NewWalker(cfg.Crawl, driver, store, esc, a.log.With().Str("store", store.Path()).Logger())

	state, err := walker.Run(ctx, f.startID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "crawl stopped at id %d, %d new value(s) written to %s\n", state.NextID, state.Fetched, store.Path())
	return nil
}

// launchCrawlBrowser starts the single session of a crawl. Assist mode shows
// the window and loads images so the operator can read the captcha.
func (a *app) launchCrawlBrowser(ctx context.Context, cfg config.Config) (crawl.Driver, func(), error) {
	opts := scraper.BrowserOptionsFromConfig(cfg.Scrape)
	if cfg.Crawl.CaptchaMode == config.CaptchaAssist {
		opts.Headless = false
		opts.BlockResources = false
	}
	session, err := scraper.AcquireWithRetry(ctx, opts, a.log)
	if err != nil {
		return nil, nil, err
	}
	return session, session.Release, nil
}
