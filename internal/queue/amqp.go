package queue

import (
	"encoding/json"

	"github.com/streadway/amqp"
)

// AMQPPublisher mirrors outbound events to a RabbitMQ queue so external
// consumers can react without polling the webhook receiver. Best-effort:
// publishing a single event dials, publishes and closes, and any failure is
// just returned for logging.
type AMQPPublisher struct {
	URL       string
	QueueName string
}

// PublishEvent marshals the event and pushes it onto the durable queue.
func (p *AMQPPublisher) PublishEvent(event any) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		p.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
