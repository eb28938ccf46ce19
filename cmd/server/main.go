package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xend-auth/backend/internal/config"
	"xend-auth/backend/internal/db"
	"xend-auth/backend/internal/health"
	healthhandler "xend-auth/backend/internal/health/handler"
	identityhandler "xend-auth/backend/internal/identity/handler"
	identityrepo "xend-auth/backend/internal/identity/repository"
	identityservice "xend-auth/backend/internal/identity/service"
	"xend-auth/backend/internal/logger"
	"xend-auth/backend/internal/platform/validate"
	"xend-auth/backend/internal/policy/engine"
	"xend-auth/backend/internal/presence"
	"xend-auth/backend/internal/security"
	"xend-auth/backend/internal/server"
	sessionrepo "xend-auth/backend/internal/session/repository"
	sessionservice "xend-auth/backend/internal/session/service"
	"xend-auth/backend/internal/telemetry"
	telemetryotel "xend-auth/backend/internal/telemetry/otel"
	"xend-auth/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(logger.Options{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		zl.Fatal("otel providers", zap.Error(err))
	}
	providers.SetGlobal()

	events := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic)
	if kafkaProducer != nil {
		events = append(events, kafkaProducer)
	} else {
		zl.Info("kafka disabled: KAFKA_BROKERS not set")
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	redisClient, err := presence.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zl.Fatal("open redis", zap.Error(err))
	}
	defer redisClient.Close()

	accessSecret, err := security.ParseSecret(cfg.JWTAccessSecret)
	if err != nil {
		zl.Fatal("JWT_ACCESS_SECRET", zap.Error(err))
	}
	refreshSecret, err := security.ParseSecret(cfg.JWTRefreshSecret)
	if err != nil {
		zl.Fatal("JWT_REFRESH_SECRET", zap.Error(err))
	}
	tokens, err := security.NewIssuer(
		security.KeyConfig{Secret: accessSecret, Alg: cfg.JWTAccessAlg},
		security.KeyConfig{Secret: refreshSecret, Alg: cfg.JWTRefreshAlg},
		cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL(),
	)
	if err != nil {
		zl.Fatal("token issuer", zap.Error(err))
	}

	var policy *engine.OPAEvaluator
	if cfg.PolicyFile != "" {
		policy, err = engine.NewOPAEvaluatorFromFile(ctx, cfg.PolicyFile)
	} else {
		policy, err = engine.NewOPAEvaluator(ctx, engine.DefaultPolicy)
	}
	if err != nil {
		zl.Fatal("policy", zap.Error(err))
	}

	identities := identityrepo.NewPostgresRepository(conn)
	sessions := sessionservice.NewManager(sessionrepo.NewPostgresRepository(conn), identities, tokens, events, zl.Named("session"))
	auth := identityservice.NewAuthService(identities, sessions, security.NewHasher(cfg.BcryptCost), events, identityservice.Config{
		LoginIdentifier:      cfg.LoginIdentifier,
		AutoProvisionOnLogin: cfg.AutoProvisionOnLogin,
	}, zl.Named("auth"))

	keys := presence.Keys{Prefix: cfg.PresenceKeyPrefix}
	tracker := presence.NewTracker(presence.NewRedisStore(redisClient, keys), identities, cfg.PresenceMarkerTTL(), events, zl.Named("presence"))
	expiry := presence.NewRedisExpirySource(redisClient, zl.Named("presence"))
	go expiry.KeepNotifications(ctx, time.Minute)
	listener := presence.NewListener(expiry, identities, events, zl.Named("presence"),
		presence.ListenerOptions{Keys: keys})
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if err := listener.Run(ctx); err != nil {
			zl.Error("presence listener stopped", zap.Error(err))
		}
	}()

	checker := health.NewChecker(2 * time.Second)
	checker.Add("postgres", conn.PingContext)
	checker.Add("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	checker.Add("policy", policy.HealthCheck)

	app := server.NewHTTP(server.HTTPDeps{
		Identity:    identityhandler.New(auth, sessions, validate.New()),
		Auth:        sessions,
		Presence:    tracker,
		Policy:      policy,
		Health:      checker,
		Log:         zl.Named("http"),
		CORSOrigins: cfg.CORSAllowOrigins,
	})
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			zl.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	hs := healthhandler.NewGRPCServer()
	go healthhandler.Sync(ctx, checker, hs, 10*time.Second, zl.Named("health"))
	var ops *grpc.Server
	if cfg.OpsGRPCEnabled() {
		ops = server.NewOpsGRPC(hs)
		lis, err := net.Listen("tcp", cfg.OpsGRPCAddr)
		if err != nil {
			zl.Fatal("listen ops grpc", zap.Error(err))
		}
		go func() {
			zl.Info("ops gRPC server listening", zap.String("addr", cfg.OpsGRPCAddr))
			if err := ops.Serve(lis); err != nil && !errors.Is(err, net.ErrClosed) {
				zl.Error("ops grpc serve", zap.Error(err))
			}
		}()
	} else {
		zl.Info("ops gRPC server disabled: OPS_GRPC_ADDR=off")
	}

	<-ctx.Done()
	zl.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	if ops != nil {
		ops.GracefulStop()
	}
	<-listenerDone

	// Let in-flight async emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		zl.Warn("otel shutdown", zap.Error(err))
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			zl.Warn("kafka close", zap.Error(err))
		}
	}
	zl.Info("server stopped")
}
