package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/mathquiz/api"
	"github.com/jmcleod/mathquiz/internal/logging"
	"github.com/jmcleod/mathquiz/storage"
	bboltstorage "github.com/jmcleod/mathquiz/storage/bbolt"
	"github.com/jmcleod/mathquiz/storage/memory"
	"github.com/jmcleod/mathquiz/storage/sqlite"
)

const sweepInterval = time.Minute

var (
	port           int
	storageKind    string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	tlsCert        string
	tlsKey         string
	trustedProxies []string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the reference quiz server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (tlsCert == "") != (tlsKey == "") {
			return errors.New("--tls-cert and --tls-key must be given together")
		}
		proxies, err := api.ParseTrustedProxies(trustedProxies)
		if err != nil {
			return err
		}
		srvLogger, err := serverLogger(cmd)
		if err != nil {
			return err
		}

		dataDir := filepath.Join(cfg.dataDir, "server")
		repo, err := openRepository(storageKind, dataDir)
		if err != nil {
			return err
		}
		defer repo.Close()

		var tokens api.TokenStore = api.NewMemoryTokenStore()
		if storageKind != "memory" {
			tokens = api.NewPersistentTokenStore(repo)
		}

		a := api.New(repo,
			api.WithLogger(srvLogger),
			api.WithTokenStore(tokens),
			api.WithTokenTTL(accessTTL, refreshTTL),
			api.WithTrustedProxies(proxies),
			api.WithAlertFunc(func(e api.AlertEvent) {
				srvLogger.Warn(e.Message, "alert", e.Type, "count", e.Count, "threshold", e.Threshold)
			}),
		)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if tlsCert != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go sweep(ctx, a, tokens, srvLogger)

		done := make(chan error, 1)
		go func() {
			var err error
			if server.TLSConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "Starting server on port %d (storage: %s, data: %s)...\n", port, storageKind, dataDir)

		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// serverLogger logs audit events at info unless a level was chosen
// explicitly.
func serverLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cmd.Flags().Changed("log-level") || os.Getenv(envLogLevel) != "" {
		var err error
		if level, err = logging.ParseLevel(cfg.logLevel); err != nil {
			return nil, err
		}
	}
	return logging.New(cmd.ErrOrStderr(), level), nil
}

// openRepository opens the record store named by kind under dir.
func openRepository(kind, dir string) (storage.Repository, error) {
	if kind == "memory" {
		return memory.NewRepository(), nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	switch kind {
	case "bbolt":
		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dir, "mathquiz.db"), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open bbolt storage: %w", err)
		}
		return repo, nil
	case "sqlite":
		repo, err := sqlite.Open(filepath.Join(dir, "mathquiz.sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage %q (memory, bbolt, sqlite)", kind)
	}
}

// sweep periodically drops expired rate limiter state and token pairs.
func sweep(ctx context.Context, a *api.API, tokens api.TokenStore, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.SweepLimiters()
			n, err := tokens.DeleteExpired(now)
			if err != nil {
				logger.Warn("failed to delete expired tokens", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("deleted expired tokens", "count", n)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&storageKind, "storage", "bbolt", "Record storage: memory, bbolt or sqlite")
	serverCmd.Flags().DurationVar(&accessTTL, "access-ttl", api.DefaultAccessTokenTTL, "Access token lifetime")
	serverCmd.Flags().DurationVar(&refreshTTL, "refresh-ttl", api.DefaultRefreshTokenTTL, "Refresh token lifetime")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxies", nil, "CIDR ranges whose forwarding headers are trusted")
}
