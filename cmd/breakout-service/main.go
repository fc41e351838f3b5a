package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/breakout-service/config"
	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/events"
	"github.com/cwrk-planet/breakout-service/internal/postgres"
	"github.com/cwrk-planet/breakout-service/internal/session"
	"github.com/cwrk-planet/breakout-service/internal/signaling"
	grpcx "github.com/cwrk-planet/breakout-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/breakout-service/internal/transport/http"
	"github.com/cwrk-planet/breakout-service/internal/transport/ws"
	"github.com/cwrk-planet/breakout-service/pkg/logger"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting breakout-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- events ---
	bus := events.NewBus()

	hub := ws.NewHub()
	bus.Subscribe("ws", hub)
	bus.Subscribe("signaling", signaling.NewDispatcher(signaling.MultiNotifier{hub, signaling.LogNotifier{}}))

	// --- postgres (optional) ---
	var (
		history httpx.HistoryStore
		archive httpx.RoomArchive
	)
	if cfg.Postgres.DSN != "" {
		db, err := postgres.New(ctx, cfg.Postgres.PoolConfig())
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()

		bus.Subscribe("postgres", db.Recorder(slog.Default()))
		history = db.Events
		archive = db.Rooms
	} else {
		slog.Warn("postgres dsn is empty, event history disabled")
	}

	// --- sessions ---
	sessions := session.NewManager(cfg.Session.SessionConfig(), bus, slog.Default())

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if !verifier.Enabled() {
		slog.Warn("jwt secret is empty, trusting X-User-ID headers")
	}

	// --- HTTP + WS ---
	wsServer := ws.NewServer(hub, sessions, verifier)
	handler := httpx.NewHandler(sessions, history, archive)
	readTimeout, writeTimeout, idleTimeout := cfg.HTTP.Timeouts()
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpx.NewRouter(handler, verifier, wsServer),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
	)
	grpcx.Register(grpcServer, grpcx.NewServer(sessions, verifier, bus))

	// --- run both servers ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		return grpcServer.Serve(lis)
	})

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return httpSrv.Shutdown(ctxShutdown)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}

	// сначала сессии (таймеры и команды), затем дочитываем шину, пул закроется defer-ом
	sessions.Close()
	bus.Close()
	slog.Info("stopped")
}
