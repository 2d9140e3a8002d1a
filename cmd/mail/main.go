package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/config"
	"github.com/gigmatch-dev/settlement/backend/internal/mailer"
	"github.com/gigmatch-dev/settlement/backend/internal/notify"
	"github.com/gigmatch-dev/settlement/backend/internal/repository"
	"github.com/lmittmann/tint"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * Load config
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	/**********************************************
	 * Logger
	 **********************************************/
	var logger *slog.Logger
	if cfg.Environment == "development" {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	slog.SetDefault(logger)

	/**********************************************
	 * Connect to the database for recipient lookup
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * Mail client
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
		mail.WithTimeout(time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second),
	)
	if err != nil {
		logger.Error("failed to create mail client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	m, err := mailer.New(repo, client, cfg.Email.SMTP.Username, os.DirFS(cfg.Email.TemplateDir))
	if err != nil {
		logger.Error("failed to load mail templates", "error", err)
		os.Exit(1)
	}

	/**********************************************
	 * Connect to RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	q, err := notify.DeclareQueue(ch, cfg.RabbitMQ.NotificationQueue)
	if err != nil {
		logger.Error("failed to declare queue", "error", err)
		os.Exit(1)
	}

	// one message at a time, so a slow SMTP server does not pile up unacked deliveries
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("failed to set qos", "error", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",    // let the broker name the consumer
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("failed to consume queue", "error", err)
		os.Exit(1)
	}

	/**********************************************
	 * Consume until interrupted
	 **********************************************/
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancelConsumer := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	consumerDone := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(consumerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("delivery channel closed")
					return
				}

				sendCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second*3)
				err := m.Handle(sendCtx, msg.Body)
				cancel()

				switch {
				case err == nil:
					_ = msg.Ack(false)
				case errors.Is(err, mailer.ErrDrop):
					logger.Error("dropping notification", "error", err, "body", string(msg.Body))
					_ = msg.Nack(false, false)
				default:
					logger.Error("failed to mail notification, requeueing", "error", err)
					_ = msg.Nack(false, true)
				}
			}
		}
	}()

	logger.Info("waiting for notifications (press CTRL+C to quit)", "queue", q.Name)
	select {
	case <-sigChan:
	case <-consumerDone:
		// the broker went away; exit so the supervisor restarts us with a fresh connection
		cancelConsumer()
		logger.Error("consumer stopped, exiting")
		os.Exit(1)
	}

	logger.Info("shutting down mail worker...")
	cancelConsumer()
	wg.Wait()
	logger.Info("mail worker stopped")
}
