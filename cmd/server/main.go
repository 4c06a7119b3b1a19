package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/realtime"
	"chat-relay/repositories"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run())
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. Deferred cleanup (database close) is
// guaranteed to execute before the process exits.
func run() int {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfig
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Error("database opening failed", "error", err)
		return exitRuntime
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation (optional wordlist)
	var censor *moderation.Moderator
	if config.CensoredWordsFile != nil {
		words, err := moderation.LoadWordlist(*config.CensoredWordsFile)
		if err != nil {
			log.Error("loading wordlist failed", "path", *config.CensoredWordsFile, "error", err)
			return exitConfig
		}
		replacement, err := internal.CharacterRune(config.ModerationCharReplacement)
		if err != nil {
			log.Error("invalid moderation replacement", "error", err)
			return exitConfig
		}
		censor, err = moderation.NewModerator(words, replacement)
		if err != nil {
			log.Error("building moderator failed", "error", err)
			return exitConfig
		}
	}

	// 4. Coordination core
	store := repositories.NewStore(db, log)
	messages := services.NewMessageService(log, store, censor)
	registry := realtime.NewRegistry()
	coordinator := realtime.NewCoordinator(log, store, messages, registry)
	verifier := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	monitor := observability.NewMonitoring(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.SeedDemo {
		if err := seedDemo(ctx, log, store, verifier); err != nil {
			log.Error("demo seeding failed", "error", err)
			return exitRuntime
		}
	}

	// 5. Transport
	server := ws.NewServer(log, coordinator, store, verifier, monitor, limitsFromConfig(config), config.ConnectionBufferSize)

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go monitor.Run(ctx, config.MetricInterval)
	if config.DebugPort != nil {
		internal.StartDebugServer(log, db, *config.DebugPort, func() any { return monitor.Snapshot() })
	}

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		log.Error("server failed", "error", err)
		return exitRuntime
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	log.Info("Program stopped cleanly")

	return exitOK
}

func limitsFromConfig(config internal.Config) realtime.Limits {
	limits := realtime.DefaultLimits()
	if config.SendMessageLimit != nil {
		limits.SendMessage.Max = *config.SendMessageLimit
	}
	if config.EditMessageLimit != nil {
		limits.EditMessage.Max = *config.EditMessageLimit
	}
	if config.DeleteMessageLimit != nil {
		limits.DeleteMessage.Max = *config.DeleteMessageLimit
	}
	if config.TypingLimit != nil {
		limits.Typing.Max = *config.TypingLimit
	}
	return limits
}

// seedDemo provisions a small workspace so a fresh instance can be
// exercised immediately. Tokens for the demo users are logged once.
func seedDemo(ctx context.Context, log *slog.Logger, store contract.IStore, tokens *auth.Tokens) error {
	type demoUser struct {
		id, email, name, password string
	}
	users := []demoUser{
		{id: "u-alice", email: "alice@example.com", name: "alice", password: "alice-demo"},
		{id: "u-bob", email: "bob@example.com", name: "bob", password: "bob-demo"},
		{id: "u-carol", email: "carol@example.com", name: "carol", password: "carol-demo"},
	}

	if _, err := store.UserByID(ctx, users[0].id); err == nil {
		log.Info("Demo data already present, skipping seed")
		return nil
	}

	for _, u := range users {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			return err
		}
		if err := store.CreateUser(ctx, domainUser(u.id, u.email, u.name), hash); err != nil {
			return err
		}
	}

	if err := store.CreateWorkspace(ctx, "w-demo", "Demo"); err != nil {
		return err
	}
	for _, u := range users {
		if err := store.AddWorkspaceMember(ctx, "w-demo", u.id); err != nil {
			return err
		}
	}
	if err := store.CreateChannel(ctx, "c-general", "w-demo", "general"); err != nil {
		return err
	}
	if err := store.CreateConversation(ctx, "d-alice-bob", []string{"u-alice", "u-bob"}); err != nil {
		return err
	}

	for _, u := range users {
		token, err := tokens.Generate(u.id, u.email)
		if err != nil {
			return err
		}
		log.Info("Demo token", "user", u.name, "token", token)
	}
	return nil
}

func domainUser(id, email, name string) domain.User {
	return domain.User{ID: id, Email: email, Name: name, Status: domain.StatusOffline}
}
