// cmd/service/root.go
package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github-activity-tracker/internal/activity"
	"github-activity-tracker/internal/config"
	"github-activity-tracker/internal/github"
	"github-activity-tracker/internal/poller"
)

const retryBackoff = 500 * time.Millisecond

// flagKeys maps persistent flags onto configuration keys, so flags,
// environment variables and .env share one surface.
var flagKeys = map[string]string{
	"log-level":      "LOG_LEVEL",
	"token":          "GITHUB_TOKEN",
	"base-url":       "GITHUB_BASE_URL",
	"accounts":       "TRACKED_ACCOUNTS",
	"interval":       "POLL_INTERVAL",
	"reference-date": "REFERENCE_DATE",
	"concurrency":    "ACCOUNT_CONCURRENCY",
	"addr":           "HTTP_ADDR",
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:          "activity-tracker",
		Short:        "Track recent GitHub commit activity for a set of accounts",
		Long:         "activity-tracker polls the GitHub REST API on a fixed interval and summarizes, per tracked account, every repository with commits since a reference date.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Flags(), cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("token", "", "GitHub token; anonymous when empty")
	flags.String("base-url", "", "GitHub API base URL (GitHub Enterprise)")
	flags.StringSlice("accounts", nil, "accounts to track, comma separated")
	flags.Duration("interval", 0, "time between two polling cycles")
	flags.String("reference-date", "", "ignore commits before this date (YYYY-MM-DD or RFC3339)")
	flags.Int("concurrency", 0, "accounts processed in parallel")
	flags.String("addr", "", "HTTP listen address for serve")

	rootCmd.AddCommand(
		newServeCmd(a),
		newOnceCmd(a),
	)
	return rootCmd
}

func (a *app) init(flags *pflag.FlagSet, logOut io.Writer) error {
	v := viper.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}

	// Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully",
		"accounts", len(cfg.TrackedAccounts),
		"interval", cfg.PollInterval.String(),
		"reference_date", cfg.ReferenceTime.Format(time.RFC3339))

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) newScheduler() *poller.Scheduler {
	return poller.New(poller.Options{
		Interval:      a.cfg.PollInterval,
		ReferenceDate: a.cfg.ReferenceTime,
		Accounts:      a.cfg.TrackedAccounts,
		Credential:    a.cfg.GithubToken,
		Concurrency:   a.cfg.AccountConcurrency,
		NewSource:     a.newSource,
	}, a.logger)
}

// newSource builds a GitHub client for one credential; each cycle gets its own.
func (a *app) newSource(credential string) (activity.Source, error) {
	opts := []github.Option{
		github.WithTimeout(a.cfg.RequestTimeout),
		github.WithRetryPolicy(a.cfg.MaxAttempts, retryBackoff),
	}
	if a.cfg.GithubBaseURL != "" {
		opts = append(opts, github.WithBaseURL(a.cfg.GithubBaseURL))
	}
	client, err := github.NewClient(credential, a.logger, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
