package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange              = "smartbilling.events"
	CheckoutCompletedRoutingKey = "checkout.completed.v1"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
