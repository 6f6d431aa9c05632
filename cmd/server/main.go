package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"canvass/internal/audit"
	auditkafka "canvass/internal/audit/kafka"
	"canvass/internal/broadcast"
	broadcasthandler "canvass/internal/broadcast/handler"
	grouphandler "canvass/internal/group/handler"
	groupservice "canvass/internal/group/service"
	groupstore "canvass/internal/group/store"
	httpapi "canvass/internal/http"
	"canvass/internal/identity"
	"canvass/internal/mail"
	memberhandler "canvass/internal/member/handler"
	"canvass/internal/member/invite"
	memberservice "canvass/internal/member/service"
	memberstore "canvass/internal/member/store"
	"canvass/internal/personality"
	"canvass/internal/platform/config"
	"canvass/internal/platform/httpserver"
	"canvass/internal/platform/logger"
	"canvass/internal/platform/metrics"
	"canvass/internal/platform/postgres"
	platformredis "canvass/internal/platform/redis"
	"canvass/internal/referral"
	"canvass/internal/responder"
	"canvass/internal/session"
	submissionhandler "canvass/internal/submission/handler"
	submissionservice "canvass/internal/submission/service"
	submissionstore "canvass/internal/submission/store"
	"canvass/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg := config.FromEnv()
	log := logger.New()

	// Storage: PostgreSQL when configured, in-memory otherwise so the
	// service boots with zero infrastructure for local development.
	var (
		db          *sql.DB
		members     memberstore.MemberStore
		groups      groupstore.GroupStore
		submissions submissionstore.SubmissionStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		members = memberstore.NewPostgres(db)
		groups = groupstore.NewPostgres(db)
		submissions = submissionstore.NewPostgres(db)
		log.Info("storage ready", "backend", "postgres")
	} else {
		members = memberstore.NewInMemory()
		groups = groupstore.NewInMemory()
		submissions = submissionstore.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Referral staging: Redis when configured, else process-local.
	var staging referral.Staging
	if redisClient, err := platformredis.New(cfg.RedisURL); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		staging = referral.NewRedisStaging(redisClient.Client)
		log.Info("referral staging ready", "backend", "redis")
	} else {
		staging = referral.NewInMemoryStaging()
		log.Warn("REDIS_URL not set, staging referrals in memory")
	}

	// Audit trail: Kafka when brokers are configured, else an in-process
	// sink. Emission is best-effort either way.
	var auditor audit.Publisher = audit.NewMemorySink()
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditkafka.NewPublisher(ctx, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Close(closeCtx); err != nil {
				log.Error("audit publisher close failed", "error", err)
			}
		}()
		auditor = publisher
		log.Info("audit trail ready", "topic", cfg.AuditTopic)
	}

	m := metrics.New()
	tokens := session.NewTokenService(cfg.JWTSigningKey, cfg.SessionTTL)
	codes := invite.NewGenerator(members, invite.WithMaxAttempts(cfg.InviteCodeMaxAttempts))

	memberSvc := memberservice.New(members, codes, staging,
		memberservice.WithLogger(log),
		memberservice.WithAuditPublisher(auditor),
		memberservice.WithMetrics(m),
	)
	groupSvc := groupservice.New(groups, members,
		groupservice.WithLogger(log),
		groupservice.WithAuditPublisher(auditor),
		groupservice.WithMetrics(m),
	)

	sender := newSender(cfg.Mailgun, log)
	broadcastSvc := broadcast.New(groups, members, sender,
		broadcast.WithLogger(log),
		broadcast.WithAuditPublisher(auditor),
		broadcast.WithMetrics(m),
		broadcast.WithConcurrency(cfg.BroadcastConcurrency),
		broadcast.WithSendTimeout(cfg.BroadcastSendTimeout),
	)

	personas := personality.NewRegistry(cfg.ContextDir)
	submissionSvc := submissionservice.New(submissions, personas, newGenerator(cfg.OpenAI, log), sender,
		submissionservice.WithLogger(log),
		submissionservice.WithAuditPublisher(auditor),
		submissionservice.WithMetrics(m),
		submissionservice.WithDefaultRecipients(cfg.DefaultRecipients),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Members: memberhandler.New(memberSvc, staging, identity.NewDevProvider(), tokens,
			cfg.SessionTTL, log,
			memberhandler.WithSecureCookies(cfg.SecureCookies),
			memberhandler.WithPublicBaseURL(cfg.PublicBaseURL)),
		Groups:      grouphandler.New(groupSvc, log),
		Broadcasts:  broadcasthandler.New(broadcastSvc, log),
		Submissions: submissionhandler.New(submissionSvc, log),

		TokenValidator:   tokens,
		ReportingKeyHash: cfg.ReportingKeyHash,
		Metrics:          m,
		Logger:           log,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting canvass", "addr", cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newSender returns the Mailgun transport, or a log-only sender when mail is
// unconfigured so local runs still exercise the full broadcast and response
// flows.
func newSender(cfg config.Mailgun, log *slog.Logger) mail.Sender {
	mailgun, err := mail.NewMailgun(mail.MailgunConfig{
		APIKey:  cfg.APIKey,
		Domain:  cfg.Domain,
		BaseURL: cfg.BaseURL,
		From:    cfg.From,
	})
	if err != nil {
		log.Warn("mailgun not configured, logging outbound mail instead", "reason", err)
		return mail.SenderFunc(func(ctx context.Context, msg mail.Message) (string, error) {
			log.InfoContext(ctx, "outbound mail (not sent)",
				"to", msg.To,
				"subject", msg.Subject,
				"bytes", len(msg.Body),
			)
			return "local-" + uuid.NewString(), nil
		})
	}
	return mail.WithBreaker(mailgun, circuit.New("mailgun"), log)
}

// newGenerator returns the OpenAI responder, or a canned acknowledgment when
// no API key is configured.
func newGenerator(cfg config.OpenAI, log *slog.Logger) responder.Generator {
	openai, err := responder.NewOpenAI(responder.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		log.Warn("openai not configured, returning canned responses", "reason", err)
		return responder.GeneratorFunc(func(context.Context, string) (string, error) {
			return "Thank you for reaching out. Your comment has been recorded and will receive a considered reply.", nil
		})
	}
	return openai
}
