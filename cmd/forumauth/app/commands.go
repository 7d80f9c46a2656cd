// Package app wires the forumauth command-line interface.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	forumauth "github.com/MrEthical07/forumauth"
)

// NewRootCmd creates the root command. Settings resolve in the order flag,
// FORUMAUTH_* environment variable, config file, default.
func NewRootCmd() *cobra.Command {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:               "forumauth",
		DisableAutoGenTag: true,
		Short:             "Authentication service for the forum backend",
		Long: `forumauth issues short-lived access credentials and single-use renewal
credentials for forum accounts. Active renewal credentials are kept in Redis,
one per account, and every issue, rotation and revocation runs inside a
per-account critical section.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error(fmt.Sprintf("Error displaying help: %v", err))
			}
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return readConfigFile(v)
		},
	}

	rootCmd.PersistentFlags().Bool(keyDebug, false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP(keyConfig, "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String(keySecret, "", "HS256 signing secret, raw or base64 (prefer FORUMAUTH_SECRET)")
	rootCmd.PersistentFlags().Bool(keyDev, false, "Development mode: in-memory Redis, demo accounts, insecure cookies allowed")
	rootCmd.PersistentFlags().Bool(keyProduction, false, "Start from the high-security preset")
	rootCmd.PersistentFlags().Duration(keyAccessTTL, forumauth.DefaultConfig().JWT.AccessTTL, "Access credential lifetime")
	rootCmd.PersistentFlags().Duration(keyRefreshTTL, forumauth.DefaultConfig().JWT.RefreshTTL, "Renewal credential lifetime")
	rootCmd.PersistentFlags().String(keyRedisAddr, "", "Redis address (host:port)")
	rootCmd.PersistentFlags().String(keyRedisPrefix, "fa", "Key prefix for renewal credentials")
	rootCmd.PersistentFlags().Bool(keyGlobalLock, false, "Serialize all accounts behind one critical section")
	bindFlags(v, rootCmd)

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newCheckCmd(v))
	rootCmd.AddCommand(newLoadtestCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		slog.Error(fmt.Sprintf("Error binding persistent flags: %v", err))
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		slog.Error(fmt.Sprintf("Error binding flags: %v", err))
	}
}

// Version is set at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "forumauth version: %s\n", Version)
		},
	}
}

type checkOutput struct {
	Valid    bool             `json:"valid"`
	Error    string           `json:"error,omitempty"`
	Warnings []checkedWarning `json:"warnings"`
}

type checkedWarning struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func severityName(s forumauth.LintSeverity) string {
	switch s {
	case forumauth.LintHigh:
		return "high"
	case forumauth.LintWarn:
		return "warn"
	default:
		return "info"
	}
}

// newCheckCmd validates the effective configuration without touching Redis.
func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the effective configuration and print lint findings",
		Long: `Resolve the configuration from flags, environment and file, run the
engine's validation rules and print advisory lint findings as JSON.
Exits non-zero when validation fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgErr := engineConfig(v)

			out := checkOutput{Valid: cfgErr == nil, Warnings: []checkedWarning{}}
			if cfgErr != nil {
				out.Error = cfgErr.Error()
			}
			for _, w := range cfg.Lint() {
				out.Warnings = append(out.Warnings, checkedWarning{
					Code:     w.Code,
					Severity: severityName(w.Severity),
					Message:  w.Message,
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if cfgErr != nil {
				return fmt.Errorf("invalid configuration: %w", cfgErr)
			}
			return nil
		},
	}
}

func newLogger(v *viper.Viper) *slog.Logger {
	level := slog.LevelInfo
	if v.GetBool(keyDebug) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
