package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"careLinkWs/internal/config"
	"careLinkWs/internal/modules/realtime/application/handler"
	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/infrastructure"
	transport "careLinkWs/internal/modules/realtime/interface"
	remindersport "careLinkWs/internal/modules/reminders/application/port"
	remindersuc "careLinkWs/internal/modules/reminders/application/usecase"
	remindersinfra "careLinkWs/internal/modules/reminders/infrastructure"
	"careLinkWs/internal/platform/audit"
	"careLinkWs/internal/platform/broker"
	"careLinkWs/internal/shared/auth"
	"careLinkWs/internal/shared/logging"
)

type auditStore interface {
	port.AuditRecorder
	port.AuditReader
	io.Closer
}

func main() {
	// Cargar .env para que las ejecuciones locales respeten la configuración.
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: true,
		Directory: cfg.Logging.Directory,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	slog.Info("logging initialized", slog.String("directory", cfg.Logging.Directory), slog.String("level", cfg.Logging.Level), slog.String("format", cfg.Logging.Format))
	slog.Info("kafka config resolved", slog.Any("brokers", cfg.Kafka.Brokers), slog.String("group", cfg.Kafka.GroupID), slog.Any("topics", cfg.Kafka.Topics))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditLog, err := openAudit(cfg.Audit)
	if err != nil {
		slog.Error("audit store unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer auditLog.Close()

	scheduleSource, scheduleFile, err := newScheduleSource(cfg.Reminders)
	if err != nil {
		slog.Error("reminder schedule unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	schedulerCfg := remindersuc.SchedulerConfig{
		AppointmentInterval: cfg.Reminders.AppointmentInterval,
		MedicationInterval:  cfg.Reminders.MedicationInterval,
		CatchUp:             cfg.Reminders.CatchUp,
		FetchTimeout:        cfg.Reminders.Timeout,
	}
	reminderFactory := func(identity string, sink remindersport.NotificationSink) port.Reminders {
		return remindersuc.NewScheduler(identity, scheduleSource, sink, schedulerCfg, nil)
	}

	hub := infrastructure.NewHub()
	registry := infrastructure.NewHandlerRegistry()
	sessions := usecase.NewSessionRegistry(ctx, hub, reminderFactory, usecase.SessionConfig{
		Capacity:  cfg.Notifications.Capacity,
		Retention: cfg.Notifications.SessionRetention,
	})

	// Casos de uso
	broadcastUC := usecase.NewBroadcastUseCase(hub)
	inboundUC := usecase.NewInboundUseCase(sessions, broadcastUC)
	validator := auth.NewJWTValidatorWithPublicKey(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey)
	connectUC := usecase.NewConnectUseCase(validator, sessions)

	// Registrar handlers de eventos entrantes
	for _, h := range handler.All(inboundUC) {
		registry.Register(h)
	}

	var publisher port.EventPublisher = infrastructure.NewLocalPublisher(registry)
	var kafkaPublisher *broker.KafkaPublisher
	waitConsumers := func() {}
	if cfg.Kafka.Enabled() {
		kafkaPublisher, err = broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.PublishTopic)
		if err != nil {
			slog.Error("kafka publisher setup failed", slog.Any("error", err))
			os.Exit(1)
		}
		publisher = kafkaPublisher
		waitConsumers, err = broker.StartKafkaConsumers(ctx, registry, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topics)
		if err != nil {
			slog.Error("kafka consumers setup failed", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		slog.Warn("kafka disabled; outbound messages are delivered in-process")
	}

	messagingUC := usecase.NewMessagingUseCase(sessions, publisher, auditLog, broadcastUC)
	notificationsUC := usecase.NewNotificationsUseCase(sessions, auditLog)
	auditUC := usecase.NewAuditUseCase(auditLog)

	// Servidor Echo
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	transport.RegisterRoutes(e, transport.RouteDeps{
		Hub:           hub,
		Sessions:      sessions,
		Connect:       connectUC,
		Messaging:     messagingUC,
		Notifications: notificationsUC,
		Audit:         auditUC,
		Events:        registry,
		ServiceToken:  cfg.Security.ServiceToken,
		SendBuffer:    cfg.Websocket.SendBuffer,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", echo.HeaderXRequestID},
		AllowCredentials: true,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler.Handler(e),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.Any("error", err))
			cancel()
		}
	}()

	// Esperar señales; SIGHUP recarga el archivo de horarios
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				reloadSchedule(scheduleFile)
				continue
			}
			break wait
		}
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", slog.Any("error", err))
	}
	sessions.Close()
	cancel()
	waitConsumers()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			slog.Warn("kafka publisher close", slog.Any("error", err))
		}
	}
	slog.Info("server stopped")
}

func openAudit(cfg config.AuditConfig) (auditStore, error) {
	if cfg.DatabasePath == "" {
		slog.Info("audit trail kept in memory")
		return audit.NewLogRecorder(0), nil
	}
	recorder, err := audit.NewSQLiteRecorder(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	slog.Info("audit trail persisted", slog.String("path", cfg.DatabasePath))
	return recorder, nil
}

// newScheduleSource picks the reminder schedule collaborator. The file source is returned
// separately so it can be reloaded.
func newScheduleSource(cfg config.RemindersConfig) (remindersport.ScheduleSource, *remindersinfra.FileScheduleSource, error) {
	switch {
	case cfg.ScheduleFile != "":
		source, err := remindersinfra.LoadScheduleFile(cfg.ScheduleFile)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("reminder schedules from file", slog.String("path", cfg.ScheduleFile))
		return source, source, nil
	case cfg.ScheduleBaseURL != "":
		slog.Info("reminder schedules from http", slog.String("baseUrl", cfg.ScheduleBaseURL))
		return remindersinfra.NewScheduleHTTPClient(cfg.ScheduleBaseURL, cfg.ScheduleToken, cfg.Timeout, nil), nil, nil
	default:
		slog.Info("reminder schedules disabled")
		return remindersinfra.NopScheduleSource{}, nil, nil
	}
}

func reloadSchedule(source *remindersinfra.FileScheduleSource) {
	if source == nil {
		return
	}
	if err := source.Reload(); err != nil {
		slog.Warn("reminder schedule reload failed", slog.Any("error", err))
		return
	}
	slog.Info("reminder schedule reloaded")
}
