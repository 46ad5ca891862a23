package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maen-al-khraisha/mentorpath-sub001/core"
	"github.com/maen-al-khraisha/mentorpath-sub001/modules/billing"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/config"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/entitlement"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/httpserver"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/logger"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/mailer"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/mongo"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/redis"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/uploads"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/usage"
)

type appConfig struct {
	PaddleAPIKey       string        `env:"PADDLE_API_KEY"`
	PaddleEnvironment  string        `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	WebhookSecret      string        `env:"BILLING_WEBHOOK_SECRET,required"`
	PlansFile          string        `env:"PLANS_FILE"`
	WebhookDedupeTTL   time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"72h"`
	TrialSweepInterval time.Duration `env:"TRIAL_SWEEP_INTERVAL" envDefault:"6h"`
	TrialNoticeWindow  time.Duration `env:"TRIAL_NOTICE_WINDOW" envDefault:"72h"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.New(logCfg, "mentorpath-billing")

	var appCfg appConfig
	config.MustLoad(&appCfg)
	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	var mongoCfg mongo.Config
	config.MustLoad(&mongoCfg)
	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	var mailCfg mailer.Config
	config.MustLoad(&mailCfg)
	var uploadsCfg uploads.Config
	config.MustLoad(&uploadsCfg)

	db, err := mongo.Database(ctx, mongoCfg)
	if err != nil {
		log.Error("mongodb connection failed", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("redis connection failed", slog.Any("error", err))
		os.Exit(1)
	}

	var table plans.Table
	if appCfg.PlansFile != "" {
		table, err = plans.LoadFile(appCfg.PlansFile)
		if err != nil {
			log.Error("plan table load failed", slog.String("path", appCfg.PlansFile), slog.Any("error", err))
			os.Exit(1)
		}
	}
	resolver := plans.NewResolver(table)

	usageStore := usage.NewMongoStore(db, "")
	subsStore := subscription.NewMongoStore(db, "")

	var provider subscription.Provider
	if appCfg.PaddleAPIKey != "" {
		paddleProvider, err := subscription.NewPaddleProvider(subscription.PaddleConfig{
			APIKey:      appCfg.PaddleAPIKey,
			Environment: appCfg.PaddleEnvironment,
		})
		if err != nil {
			log.Error("paddle provider init failed", slog.Any("error", err))
			os.Exit(1)
		}
		provider = paddleProvider
	} else {
		log.Warn("PADDLE_API_KEY not set, checkout and portal endpoints are disabled")
	}

	var mail mailer.Mailer
	if mailCfg.PostmarkServerToken != "" {
		mail, err = mailer.NewPostmark(mailCfg)
		if err != nil {
			log.Error("mailer init failed", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		log.Warn("POSTMARK_SERVER_TOKEN not set, emails are written to disk",
			slog.String("dir", mailCfg.DevEmailDir))
		mail = mailer.NewDev(mailCfg.DevEmailDir)
	}

	subsService := subscription.NewService(subsStore, provider, log,
		subscription.WithTrialNotifier(mail))

	reconciler := subscription.NewReconciler(subsStore, log,
		subscription.WithDeduper(subscription.NewRedisDeduper(redisClient, appCfg.WebhookDedupeTTL)),
		subscription.WithNotifier(mail))

	gate := entitlement.NewGate(subsService, usageStore, resolver)

	syncer, err := usage.NewSyncer(usageStore, usage.CollectionCounters(db))
	if err != nil {
		log.Error("usage syncer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	var uploadSigner *uploads.Signer
	if uploadsCfg.Bucket != "" {
		uploadSigner, err = uploads.NewSigner(ctx, uploadsCfg)
		if err != nil {
			log.Error("upload signer init failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	go sweepTrials(ctx, subsService, appCfg.TrialSweepInterval, appCfg.TrialNoticeWindow, log)

	healthcheck := mongo.Healthcheck(db.Client())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := healthcheck(req.Context()); err != nil {
			core.JSONError(w, core.ErrInternalServerError, "database unreachable")
			return
		}
		core.JSON(w, http.StatusOK, nil)
	})
	r.Mount("/", billing.Router(billing.Deps{
		Gate:          gate,
		Subs:          subsService,
		Reconciler:    reconciler,
		UsageStore:    usageStore,
		Syncer:        syncer,
		Uploads:       uploadSigner,
		WebhookSecret: appCfg.WebhookSecret,
		Log:           log,
	}))

	server := httpserver.New(httpCfg, log)
	if err := server.Run(ctx, r); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// sweepTrials periodically downgrades lapsed trials so entitlements stay
// correct even for users who never trigger the lazy check by coming back,
// and sends the trial-ending notice to trials closing soon.
func sweepTrials(ctx context.Context, svc *subscription.Service, interval, noticeWindow time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			downgraded, err := svc.SweepExpiredTrials(ctx)
			if err != nil {
				log.Error("trial sweep failed", slog.Any("error", err))
				continue
			}
			if downgraded > 0 {
				log.Info("trial sweep downgraded lapsed trials", slog.Int("count", downgraded))
			}

			if noticeWindow <= 0 {
				continue
			}
			sent, err := svc.NotifyEndingTrials(ctx, noticeWindow)
			if err != nil {
				log.Error("trial notice pass failed", slog.Any("error", err))
				continue
			}
			if sent > 0 {
				log.Info("trial-ending notices sent", slog.Int("count", sent))
			}
		}
	}
}
