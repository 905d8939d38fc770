package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Sahanuj/telegram-post-approve/internal/album"
	"github.com/Sahanuj/telegram-post-approve/internal/boot"
	"github.com/Sahanuj/telegram-post-approve/internal/config"
	"github.com/Sahanuj/telegram-post-approve/internal/logging"
	"github.com/Sahanuj/telegram-post-approve/internal/metrics"
	"github.com/Sahanuj/telegram-post-approve/internal/moderation"
	"github.com/Sahanuj/telegram-post-approve/internal/review"
	"github.com/Sahanuj/telegram-post-approve/internal/telegram"
	"github.com/Sahanuj/telegram-post-approve/internal/webhook"
)

const (
	pollTimeoutSeconds = 60
	shutdownTimeout    = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive updates and run the approval workflow",
	RunE:  runServe,
}

func init() {
	// serve is also the root command's default action.
	addServeFlags(serveCmd.Flags())
	addServeFlags(rootCmd.Flags())
	rootCmd.RunE = runServe
}

func addServeFlags(f *pflag.FlagSet) {
	f.String("mode", config.ModePolling, "Update delivery: polling or webhook")
	f.String("listen", ":8080", "HTTP listen address for /webhook, /metrics and /healthz (empty disables in polling mode)")
	f.String("store", config.BackendSQLite, "Pending store backend: memory, sqlite, dynamo or redis")
	f.Duration("quiet-period", album.DefaultQuietPeriod, "Album debounce window")
}

// bindServeFlags binds the flags of whichever command is running serve.
func bindServeFlags(vp *viper.Viper, f *pflag.FlagSet) {
	mustBind(vp, f, "mode", "mode")
	mustBind(vp, f, "listen_addr", "listen")
	mustBind(vp, f, "store.backend", "store")
	mustBind(vp, f, "quiet_period", "quiet-period")
}

func runServe(cmd *cobra.Command, _ []string) error {
	initStart := time.Now()
	logging.Init()
	bindServeFlags(v, cmd.Flags())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	var awsCfg aws.Config
	if boot.NeedsAWS(cfg) {
		if awsCfg, err = boot.InitAWS(ctx); err != nil {
			return err
		}
	}
	if err := boot.ResolveSecrets(ctx, ssm.NewFromConfig(awsCfg), cfg); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect to Telegram: %w", err)
	}
	client := telegram.NewClient(api, cfg.SendRate, cfg.SendBurst)

	st, closeStore, err := boot.OpenStore(ctx, cfg.Store, awsCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	wf := moderation.New(moderation.Config{
		ModerationChatID: cfg.ModerationChatID,
		NotifyRejections: cfg.NotifyRejections,
		OutcomeTimeout:   cfg.OutcomeTimeout,
	}, st, review.NewTracker(), client,
		moderation.WithOutcomeSinks(boot.OutcomeSinks(cfg.Outcomes, awsCfg)...),
		moderation.WithMetrics(m),
	)

	// Single items reach the sink synchronously from the update loop, so
	// submission runs off that goroutine. Every sink call happens before
	// collector.Close returns, which orders submits.Add before submits.Wait.
	var submits sync.WaitGroup
	collector := album.NewCollector(cfg.QuietPeriod, func(b album.Batch) {
		submits.Add(1)
		go func() {
			defer submits.Done()
			if _, err := wf.SubmitBatch(context.WithoutCancel(ctx), b); err != nil {
				log.Error().Err(err).Str("groupKey", b.GroupKey).Int("items", len(b.Items)).Msg("Failed to submit batch")
			}
		}()
	})
	metrics.RegisterBufferedGroups(reg, collector.Buffered)

	router := telegram.NewRouter(telegram.RouterConfig{
		MainChatID:       cfg.MainChatID,
		ModerationChatID: cfg.ModerationChatID,
		AdminIDs:         cfg.AdminIDs,
	}, client, collector, wf, m)

	startupLog(cfg, api.Self.UserName, initStart)

	g, gctx := errgroup.WithContext(ctx)

	var hook http.Handler
	if cfg.Mode == config.ModeWebhook {
		if err := client.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			return err
		}
		hook = webhook.NewHandler(cfg.WebhookSecret, router)
	} else {
		if err := client.DeleteWebhook(ctx); err != nil {
			return err
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = pollTimeoutSeconds
		u.AllowedUpdates = []string{"message", "callback_query"}
		updates := api.GetUpdatesChan(u)

		g.Go(func() error {
			router.Run(gctx, updates)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			api.StopReceivingUpdates()
			return nil
		})
		log.Info().Msg("Long polling for updates")
	}

	if cfg.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           withLogging(newMux(hook, m)),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.ListenAddr).Bool("webhook", hook != nil).Msg("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()
	log.Info().Msg("Shutting down...")

	router.Wait()
	collector.Close()
	submits.Wait()
	wf.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func startupLog(cfg *config.Config, botUser string, initStart time.Time) {
	logging.NewStartupLogger("approval-bot").
		Version(version).
		BotUser(botUser).
		Chat("main", cfg.MainChatID).
		Chat("moderation", cfg.ModerationChatID).
		Resource("sqlite", sqlitePath(cfg)).
		Resource("dynamoTable", cfg.Store.DynamoTable).
		Resource("eventBus", cfg.Outcomes.EventBus).
		Resource("archiveBucket", cfg.Outcomes.ArchiveBucket).
		SSMParam("botToken", cfg.BotTokenParam).
		SSMParam("webhookSecret", cfg.WebhookSecretParam).
		Feature("rejectionNotice", cfg.NotifyRejections).
		Feature("webhookSecret", cfg.WebhookSecret != "").
		Config("mode", cfg.Mode).
		Config("store", cfg.Store.Backend).
		Config("quietPeriod", cfg.QuietPeriod.String()).
		Config("admins", strconv.Itoa(len(cfg.AdminIDs))).
		InitDuration(time.Since(initStart)).
		Log()
}

func sqlitePath(cfg *config.Config) string {
	if cfg.Store.Backend != config.BackendSQLite {
		return ""
	}
	return cfg.Store.SQLitePath
}
