package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/baont182004/BiLSTM-defacement/internal/config"
	"github.com/baont182004/BiLSTM-defacement/internal/models"
	"github.com/baont182004/BiLSTM-defacement/internal/scraper"

	"github.com/spf13/cobra"
)

type extractFlags struct {
	json         bool
	navTimeoutMs string
	settleMs     string
	maxChars     string
	browserPath  string
	concurrency  int
}

func (a *app) extractCmd() *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract URL [URL...]",
		Short: "Extract the rendered text of one or more pages",
		Long: `Extract the rendered text of one or more pages with a headless browser.

With one URL the text is written to stdout, or the full result as JSON with
--json. With several URLs every result is written as one JSON line, in input
order. The exit status is 1 when any extraction failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.json, "json", false, "write the structured result as JSON")
	cmd.Flags().StringVar(&f.navTimeoutMs, "nav-timeout-ms", "", "navigation timeout in milliseconds")
	cmd.Flags().StringVar(&f.settleMs, "settle-ms", "", "delay between scroll steps in milliseconds")
	cmd.Flags().StringVar(&f.maxChars, "max-chars", "", "maximum length of the extracted text")
	cmd.Flags().StringVar(&f.browserPath, "browser-path", "", "Chrome executable to launch")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "browsers running at once when several URLs are given")
	return cmd
}

// applyFlags layers flag overrides on the loaded config. Invalid numbers keep
// the configured value.
func (f extractFlags) applyFlags(cfg config.ScrapeConfig) config.ScrapeConfig {
	cfg.NavTimeoutMs = config.IntOr(f.navTimeoutMs, cfg.NavTimeoutMs)
	cfg.SettleMs = config.IntOr(f.settleMs, cfg.SettleMs)
	cfg.MaxChars = config.IntOr(f.maxChars, cfg.MaxChars)
	if p := strings.TrimSpace(f.browserPath); p != "" {
		cfg.BrowserPath = p
	}
	if f.concurrency > 0 {
		cfg.Concurrency = f.concurrency
	}
	return cfg
}

func (a *app) runExtract(cmd *cobra.Command, args []string, f extractFlags) error {
	urls := make([]string, 0, len(args))
	for _, raw := range args {
		u, err := ensureScheme(raw)
		if err != nil {
			return err
		}
		urls = append(urls, u)
	}

	cfg := f.applyFlags(a.cfg.Scrape)
	svc := scraper.NewService(cfg, a.log)
	if a.launcher != nil {
		svc.WithLauncher(a.launcher)
	}

	if len(urls) == 1 {
		result, _ := svc.Run(cmd.Context(), urls[0])
		return a.writeSingle(result, f.json)
	}

	results, _ := scraper.NewPool(svc, cfg.Concurrency).RunAll(cmd.Context(), urls)
	enc := json.NewEncoder(a.stdout)
	failed := false
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		failed = failed || !r.OK
	}
	if failed {
		return &exitError{code: 1}
	}
	return nil
}

func (a *app) writeSingle(result *models.ExtractionResult, asJSON bool) error {
	if asJSON {
		if err := json.NewEncoder(a.stdout).Encode(result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		if !result.OK {
			return &exitError{code: 1}
		}
		return nil
	}

	if !result.OK {
		fmt.Fprintf(a.stderr, "extraction failed: %s\n", strings.Join(result.Errors, " | "))
		return &exitError{code: 1}
	}
	if len(result.Errors) > 0 {
		a.log.Warn().Strs("errors", result.Errors).Msg("extraction warnings")
	}
	_, err := fmt.Fprint(a.stdout, result.Text)
	return err
}

// ensureScheme defaults a bare host to https and rejects anything that is
// not an http(s) URL with a host
func ensureScheme(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q, use http or https", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return u.String(), nil
}
