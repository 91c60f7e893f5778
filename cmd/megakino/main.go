package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zinkereru/megakino/internal/account"
	"github.com/zinkereru/megakino/internal/api"
	"github.com/zinkereru/megakino/internal/catalog"
	"github.com/zinkereru/megakino/internal/config"
	"github.com/zinkereru/megakino/internal/domain"
	"github.com/zinkereru/megakino/internal/log"
	"github.com/zinkereru/megakino/internal/metagen"
	"github.com/zinkereru/megakino/internal/store"
	"github.com/zinkereru/megakino/internal/tui"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var (
		showVersion bool
		serve       bool
		logout      bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&serve, "serve", false, "run the HTTP API instead of the TUI")
	flag.BoolVar(&logout, "logout", false, "clear the persisted session and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("megakino %s\n", Version)
		return
	}

	if err := run(serve, logout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(serve, logout bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting megakino", "version", Version)

	// First run: persist the defaults so the user has a file to edit
	if !config.Exists() {
		if err := config.SaveConfig(cfg); err != nil {
			logger.Warn("could not write default config", "error", err)
		}
	}

	accounts, err := account.Open(filepath.Join(cfg.Storage.Dir, "accounts.db"), logger)
	if err != nil {
		return fmt.Errorf("failed to open account store: %w", err)
	}
	defer accounts.Close()

	if logout {
		if err := accounts.SetSession(nil); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	}

	catalogStore, err := store.Open(
		filepath.Join(cfg.Storage.Dir, "catalog.db"),
		store.Options{QuotaBytes: cfg.Storage.QuotaBytes()},
	)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	defer catalogStore.Close()

	engine := catalog.NewEngine(catalogStore, logger)
	if err := engine.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}

	if serve {
		return runServer(cfg, engine, logger)
	}

	user, err := currentUser(accounts)
	if err != nil {
		return err
	}

	var gen *metagen.Client
	if cfg.Metagen.APIKey != "" {
		gen = metagen.NewClient(cfg.Metagen.Endpoint, cfg.Metagen.Model, cfg.Metagen.APIKey, logger)
	}

	model := tui.NewModel(engine, accounts, gen, user, logger)
	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI", "user", user.Username)
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runServer exposes the engine over HTTP until interrupted.
func runServer(cfg *config.Config, engine *catalog.Engine, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.API.Listen,
		Handler:      api.NewRouter(engine, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // large blob uploads
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving HTTP API", "addr", cfg.API.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down HTTP API")
	return srv.Shutdown(shutdownCtx)
}

// currentUser restores the persisted session or walks the login flow.
func currentUser(accounts *account.Store) (*domain.User, error) {
	if user, err := accounts.Session(); err != nil {
		return nil, err
	} else if user != nil {
		return user, nil
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println()
	fmt.Println("Welcome to MegaKino+!")
	fmt.Println()

	for {
		fmt.Print("[l]ogin or [r]egister? ")
		choice, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}

		fmt.Print("Username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		username = strings.TrimSpace(username)

		fmt.Print("Password: ")
		passBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimSpace(string(passBytes))

		var user *domain.User
		if strings.HasPrefix(strings.TrimSpace(choice), "r") {
			u := domain.User{Username: username, Password: password}
			if err := accounts.Register(u); err != nil {
				fmt.Printf("✗ %v\n\n", err)
				continue
			}
			user = &u
		} else {
			user, err = accounts.Login(username, password)
			if err != nil {
				fmt.Printf("✗ %v\n\n", err)
				continue
			}
		}

		if err := accounts.SetSession(user); err != nil {
			return nil, err
		}
		fmt.Printf("✓ Welcome, %s!\n", user.Username)
		return user, nil
	}
}
