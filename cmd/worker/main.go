package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/opsgraph/opsgraph/internal/app"
	"github.com/opsgraph/opsgraph/internal/config"
	"github.com/opsgraph/opsgraph/internal/queue"
	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/logger/console"
)

const maxRetries = 10

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	sourceName := flag.String("source", "", "data source name from the configuration (default: first)")
	flag.Parse()

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	consoleLogger := console.NewConsoleBackend(console.ConsoleBackendParams{
		Debug: cfg.Debug || util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	components, err := app.Build(ctx, cfg, *sourceName)
	if err != nil {
		logger.Fatal("Failed to assemble pipeline", "err", err)
	}
	defer components.Close(context.Background())

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.LoadQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	// One message at a time: a load can take minutes of model time and
	// parallelism is already handled inside the pipeline.
	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.LoadQueue,
		"load_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.LoadQueue, "err", err)
	}

	logger.Info("Listening for load requests")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed")
				return
			}

			start := time.Now()
			logger.Info("Received load request")

			if err := queue.ProcessLoadMessage(ctx, components.Loader, string(msg.Body)); err != nil {
				logger.Error("Failed to process load request", "err", err)
				handleProcessingError(consumerCh, msg, queue.LoadQueue)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Load request processed", "duration", time.Since(start).Round(time.Millisecond))
			}
		}
	}
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	if retries >= maxRetries {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
