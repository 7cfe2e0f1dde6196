package rabbitmq

import (
	"context"
	"errors"
	"time"

	"git.platform.alem.school/amibragim/bazaar/internal/shared/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryHandler processes one delivery body. Returning an error leaves the
// message unacked for redelivery; nil acks it.
type DeliveryHandler func(ctx context.Context, routingKey string, body []byte) error

// ConsumeForever continuously (re)creates a channel and consumes from the
// named queue until ctx is cancelled. queueName=="" declares a fresh
// exclusive auto-delete queue bound to bindExchange with bindKey, which is
// how each storefront process receives cross-actor chat traffic.
func ConsumeForever(ctx context.Context, client *Client, log *logger.Logger, queueName, bindExchange, bindKey string, prefetch int, handle DeliveryHandler) {
	const (
		retryBaseDelay = time.Second
		retryMaxDelay  = 30 * time.Second
	)

	backoff := retryBaseDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// acquire a fresh channel with QoS
		ch, err := client.NewConsumerChannel(prefetch)
		if err != nil {
			log.Error(ctx, "rabbitmq_channel_open_failed", "Failed to open consumer channel", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, retryMaxDelay)
			continue
		}

		queue := queueName
		if queue == "" {
			q, err := ch.QueueDeclare("", false, true, true, false, nil)
			if err == nil && bindExchange != "" {
				err = ch.QueueBind(q.Name, bindKey, bindExchange, false, nil)
			}
			if err != nil {
				_ = ch.Close()
				log.Error(ctx, "rabbitmq_queue_declare_failed", "Failed to declare exclusive queue", err)
				if !sleepWithContext(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff, retryMaxDelay)
				continue
			}
			queue = q.Name
		}

		// reset backoff on successful channel creation
		backoff = retryBaseDelay

		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			_ = ch.Close()
			log.Error(ctx, "rabbitmq_consume_failed", "Failed to start consuming", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, retryMaxDelay)
			continue
		}

		// watch for channel close to trigger a re-open
		closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	consumption:
		for {
			select {
			case <-ctx.Done():
				_ = ch.Close()
				break consumption

			case amqpErr := <-closed:
				if amqpErr != nil {
					log.Error(ctx, "rabbitmq_channel_closed", "Consumer channel closed", amqpErr)
				} else {
					log.Error(ctx, "rabbitmq_channel_closed", "Consumer channel closed", errors.New("unknown channel close"))
				}
				break consumption

			case d, ok := <-deliveries:
				if !ok {
					log.Error(ctx, "rabbitmq_deliveries_closed", "Deliveries channel closed", errors.New("deliveries channel closed"))
					break consumption
				}

				if err := handle(ctx, d.RoutingKey, d.Body); err != nil {
					log.Error(ctx, "delivery_handle_failed", "Failed to handle delivery", err)
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					log.Error(ctx, "rabbitmq_ack_failed", "Failed to ack message", err)
				}
			}
		}

		// small delay before attempting to recreate channel (avoid hot loop)
		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, retryMaxDelay)
	}
}

// sleepWithContext sleeps for the given duration or returns early if ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential growth capped at max.
func nextBackoff(curr, cap time.Duration) time.Duration {
	n := curr * 2
	if n > cap {
		return cap
	}
	return n
}
