// Package queue publishes auth domain events to RabbitMQ. Publishing is
// best-effort: errors are logged and swallowed so a broker outage never
// fails the request that produced the event.
package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	queueUserSignup  = "auth.user.signup"
	queueTokenReplay = "auth.token.replay"
)

// UserSignupEvent is emitted when a new user row is created, whether through
// password signup or a first Google login.
type UserSignupEvent struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Provider string    `json:"provider"`
	At       time.Time `json:"at"`
}

// TokenReplayEvent is emitted when an already-revoked refresh token is
// presented again, a possible theft signal.
type TokenReplayEvent struct {
	UserID string    `json:"user_id"`
	JTI    string    `json:"jti"`
	At     time.Time `json:"at"`
}

// Publisher publishes events to RabbitMQ. A nil Publisher or empty URL
// disables publishing entirely.
type Publisher struct {
	url string
}

// NewPublisher creates a publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PublishUserSignup emits a UserSignupEvent.
func (p *Publisher) PublishUserSignup(ctx context.Context, event UserSignupEvent) {
	p.publish(ctx, queueUserSignup, event)
}

// PublishTokenReplay emits a TokenReplayEvent.
func (p *Publisher) PublishTokenReplay(ctx context.Context, event TokenReplayEvent) {
	p.publish(ctx, queueTokenReplay, event)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event interface{}) {
	if p == nil || p.url == "" {
		return
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
	}
}
