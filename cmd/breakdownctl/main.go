// cmd/breakdownctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Corphon/ScriptBreakdown/internal/app"
	"github.com/Corphon/ScriptBreakdown/internal/config"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
	"github.com/Corphon/ScriptBreakdown/internal/store"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

// options holds the persistent flags shared by every command
type options struct {
	dataDir   string
	apiURL    string
	driver    string
	stateFile string
	secret    string
	currency  string
	timeout   time.Duration
	verbose   bool
	asJSON    bool
}

// session is one opened store plus its durable state
type session struct {
	store *store.Store
	close func()
}

func defaultOptions() *options {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{
			APIBaseURL:     "http://localhost:8000",
			DataDir:        "data",
			StorageDriver:  "file",
			StateFile:      "state.json",
			CurrencyPrefix: "RM",
			HTTPTimeout:    30 * time.Second,
		}
	}
	return &options{
		dataDir:   cfg.DataDir,
		apiURL:    cfg.APIBaseURL,
		driver:    cfg.StorageDriver,
		stateFile: cfg.StateFile,
		secret:    cfg.StateSecret,
		currency:  cfg.CurrencyPrefix,
		timeout:   cfg.HTTPTimeout,
	}
}

// open builds a store over the durable state, restoring any saved session
func (o *options) open() (*session, error) {
	if o.driver != "memory" {
		if err := os.MkdirAll(o.dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	state, err := app.OpenState(&config.AppConfig{
		DataDir:       o.dataDir,
		StorageDriver: o.driver,
		StateFile:     o.stateFile,
		StateSecret:   o.secret,
	})
	if err != nil {
		return nil, err
	}

	logger := utils.NewNopLogger()
	if o.verbose {
		logger = utils.GetLogger()
	}
	metrics := utils.NewAPIMetricsWith(utils.NewMetricsCollector(), logger)

	s := store.New(store.Options{
		State: state,
		Client: remote.New(remote.Options{
			BaseURL: o.apiURL,
			Timeout: o.timeout,
			Metrics: metrics,
			Logger:  logger,
		}),
		Logger:   logger,
		Metrics:  metrics,
		Currency: o.currency,
	})

	return &session{
		store: s,
		close: func() {
			s.Events().Close()
			state.Close()
			logger.Sync()
		},
	}, nil
}

// run opens a session, runs fn with a timeout-bound context and closes it
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, s *store.Store) error) error {
	sess, err := o.open()
	if err != nil {
		return err
	}
	defer sess.close()

	timeout := o.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, sess.store)
}

// failure turns the store's error slot into a command error
func failure(s *store.Store, fallback string) error {
	if msg := s.LastError(); msg != "" {
		return errors.New(msg)
	}
	return errors.New(fallback)
}

// printJSON writes v indented
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	opts := defaultOptions()

	rootCmd := &cobra.Command{
		Use:   "breakdownctl",
		Short: "Command-line client for the script breakdown service",
		Long: `breakdownctl talks to the remote script analysis service using the
same durable session as the local server: log in once, then list and
select projects, upload scripts, review analyses and inspect budgets.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", opts.dataDir, "Directory holding the session state")
	flags.StringVar(&opts.apiURL, "api-url", opts.apiURL, "Remote analysis service base URL")
	flags.StringVar(&opts.driver, "storage", opts.driver, "State storage driver: file, sqlite or memory")
	flags.StringVar(&opts.stateFile, "state-file", opts.stateFile, "State file name for the file driver")
	flags.StringVar(&opts.secret, "state-secret", opts.secret, "Encrypt the saved access token with this secret (or set STATE_SECRET)")
	flags.StringVar(&opts.currency, "currency", opts.currency, "Currency prefix for budget amounts")
	flags.DurationVar(&opts.timeout, "timeout", opts.timeout, "Request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&opts.asJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newProjectsCmd(opts),
		newSelectCmd(opts),
		newStatusCmd(opts),
		newBudgetCmd(opts),
		newScriptsCmd(opts),
		newAnalyzeCmd(opts),
		newFeedbackCmd(opts),
		newChatCmd(opts),
		newDeleteScriptsCmd(opts),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
