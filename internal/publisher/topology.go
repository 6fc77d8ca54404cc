package publisher

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName   = "algocrack.direct"
	exchangeType   = "direct"
	routingKey     = "judge"
	deadLetterExch = "algocrack.dlx"
)

// DeadLetterQueue returns the name of the queue that collects rejected messages for queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dlq"
}

// DeclareTopology declares the exchanges, the judge queue and its dead letter queue.
// The publisher and the consumer both call it; declarations are idempotent as long
// as the arguments match.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	if err := ch.ExchangeDeclare(exchangeName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(deadLetterExch, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}

	dlq := DeadLetterQueue(queue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlq, dlq, deadLetterExch, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-queue-type":              "quorum",
		"x-dead-letter-exchange":    deadLetterExch,
		"x-dead-letter-routing-key": dlq,
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
}
