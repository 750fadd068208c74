package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/common"
	"github.com/aperture-prints/backend-prints/internal/config"
	"github.com/aperture-prints/backend-prints/internal/notify"
	"github.com/aperture-prints/backend-prints/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("component", "worker").
		Logger()

	obs.MustRegisterDomainMetrics("prints", nil)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}, asynq.Config{
		Concurrency: 5,
		Logger:      asynqLogger{logger},
	})

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled {
		mailer = logSender{logger: logger, from: cfg.EmailFrom}
	}

	worker := notify.Worker{
		Notifier: notify.EmailNotifier{
			Mail:       mailer,
			Enabled:    cfg.EmailEnabled,
			AdminEmail: cfg.AdminEmail,
		},
		Logger: logger,
	}

	mux := asynq.NewServeMux()
	worker.Register(mux)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		logger.Info().Msg("worker shutting down")
		srv.Shutdown()
	}()

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}

// logSender writes outgoing mail to the log. Stands in for a real provider
// in environments without SMTP credentials.
type logSender struct {
	logger zerolog.Logger
	from   string
}

func (s logSender) Send(to, subject, html string) error {
	s.logger.Info().
		Str("from", s.from).
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(html)).
		Msg("email_sent")
	return nil
}

// asynqLogger adapts zerolog to the asynq logging interface.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msgf("%v", args) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msgf("%v", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msgf("%v", args) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msgf("%v", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msgf("%v", args) }
