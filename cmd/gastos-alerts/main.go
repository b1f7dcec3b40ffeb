package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"gastos/internal/amqp"
	"gastos/internal/config"
	"gastos/internal/log"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentAlerts,
		Format:    cfg.LogFormat,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if !cfg.AlertsEnabled() {
		logger.Error("AMQP_URL is required for the alerts consumer")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Consuming budget alerts", "queue", cfg.AMQPQueue)
	err = client.ConsumeBudgetAlerts(ctx, func(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
		logger.WarnContext(ctx, "Budget exceeded",
			log.FieldUserID, msg.UserID,
			log.FieldCategoryID, msg.CategoryID,
			"category_name", msg.CategoryName,
			"budget", msg.Budget,
			"spent", msg.Spent,
			"overspend", msg.Overspend(),
			"timestamp", msg.Timestamp,
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Alerts consumer stopped")
}
