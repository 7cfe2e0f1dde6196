package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/shared/config"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/contracts"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"
	"git.platform.alem.school/amibragim/bazaar/internal/shared/rabbitmq"
)

// Run wires the console notifier and blocks until ctx is cancelled.
// It consumes the durable status queue and prints one line per update.
func Run(ctx context.Context) error {
	logger := logger.NewLogger("notifier")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err)
		return err
	}

	rmq, err := rabbitmq.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err)
		return err
	}
	defer rmq.Close()

	logger.Info(ctx, "service_started", "Notifier started", nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rabbitmq.ConsumeForever(ctx, rmq, logger,
			rabbitmq.StatusQueue, rabbitmq.StatusExchange, "", 50, handleStatusUpdate(logger))
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-done:
		return fmt.Errorf("status consumer exited unexpectedly")
	}

	logger.Info(logger.WithRequestID(context.Background(), "shutdown-001"), "graceful_shutdown", "Shutting down notifier", nil)
	wg.Wait()
	return nil
}

// handleStatusUpdate decodes one status update and prints the human line.
// Malformed JSON cannot be recovered by redelivery, so it is dropped.
func handleStatusUpdate(logger *logger.Logger) rabbitmq.DeliveryHandler {
	return func(ctx context.Context, _ string, body []byte) error {
		var update contracts.StatusUpdateMessage
		if err := json.Unmarshal(body, &update); err != nil {
			logger.Error(ctx, "status_decode_failed", "Failed to decode status update JSON", err)
			return nil
		}

		logger.Debug(ctx, "status_received", "Received status update", map[string]any{
			"order_id":   update.OrderID,
			"old_status": update.OldStatus,
			"new_status": update.NewStatus,
			"changed_by": update.ChangedBy,
		})

		fmt.Println(renderHuman(update))
		return nil
	}
}

// renderHuman formats one status update as a human-readable line.
func renderHuman(update contracts.StatusUpdateMessage) string {
	if update.EstimatedCompletion != nil {
		return fmt.Sprintf(
			"Notification for order %s: Status changed from '%s' to '%s' by %s. Estimated time of completion: %s",
			update.OrderID, update.OldStatus, update.NewStatus, update.ChangedBy, update.EstimatedCompletion.UTC().Format(time.RFC3339),
		)
	}

	return fmt.Sprintf(
		"Notification for order %s: Status changed from '%s' to '%s' by %s.",
		update.OrderID, update.OldStatus, update.NewStatus, update.ChangedBy,
	)
}
