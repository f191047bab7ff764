package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jmcleod/mathquiz/internal/logging"
)

// Environment variables consulted when the matching flag is not set.
const (
	envServer   = "MATHQUIZ_SERVER"
	envDataDir  = "MATHQUIZ_DATA_DIR"
	envProfile  = "MATHQUIZ_PROFILE"
	envLogLevel = "MATHQUIZ_LOG_LEVEL"
	envPassword = "MATHQUIZ_PASSWORD"

	defaultServer  = "http://localhost:8080"
	defaultProfile = "default"
)

// config is resolved once per invocation in the root PersistentPreRunE.
type config struct {
	server   string
	dataDir  string
	profile  string
	logLevel string
}

var (
	cfg    config
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "mathquiz",
	Short: "Practice arithmetic against a mathquiz server",
	Long: `mathquiz takes arithmetic quizzes against a mathquiz server and keeps
the login session in an encrypted local profile store. It can also run the
reference server itself (mathquiz server).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}
		resolveConfig(cmd)
		level, err := logging.ParseLevel(cfg.logLevel)
		if err != nil {
			return err
		}
		logger = logging.New(cmd.ErrOrStderr(), level)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// resolveConfig applies the environment fallback to every persistent flag
// the user did not set explicitly.
func resolveConfig(cmd *cobra.Command) {
	flags := cmd.Flags()
	fallback := func(name, env string, dst *string) {
		if flags.Changed(name) {
			return
		}
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
	fallback("server", envServer, &cfg.server)
	fallback("data-dir", envDataDir, &cfg.dataDir)
	fallback("profile", envProfile, &cfg.profile)
	fallback("log-level", envLogLevel, &cfg.logLevel)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mathquiz"
	}
	return filepath.Join(home, ".mathquiz")
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.server, "server", defaultServer, "Base URL of the mathquiz server ($"+envServer+")")
	pf.StringVar(&cfg.dataDir, "data-dir", defaultDataDir(), "Directory for local data ($"+envDataDir+")")
	pf.StringVar(&cfg.profile, "profile", defaultProfile, "Session profile name ($"+envProfile+")")
	pf.StringVar(&cfg.logLevel, "log-level", "warn", "Log level: debug, info, warn, error ($"+envLogLevel+")")
}
