// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"
)

// EventOTPRequested is the type of events published by KafkaSender.
const EventOTPRequested = "otp.requested"

// MessageWriter publishes messages. *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OTPRequested is the event consumed by an external mail sender.
type OTPRequested struct {
	Type             string    `json:"type"`
	Email            string    `json:"email"`
	Code             string    `json:"code"`
	ExpiresInSeconds int64     `json:"expiresInSeconds"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// KafkaSender publishes OTPRequested events keyed by email so that events
// for one recipient stay ordered within a partition.
type KafkaSender struct {
	writer MessageWriter
	ttl    time.Duration
	now    func() time.Time
}

// NewKafkaWriter creates a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("kafka topic is required")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}, nil
}

// NewKafkaSender creates a KafkaSender. codeTTL is copied into each event.
func NewKafkaSender(writer MessageWriter, codeTTL time.Duration) (*KafkaSender, error) {
	if writer == nil {
		return nil, oops.Errorf("kafka writer is required")
	}
	return &KafkaSender{writer: writer, ttl: codeTTL, now: time.Now}, nil
}

// Deliver publishes an OTPRequested event.
func (s *KafkaSender) Deliver(ctx context.Context, email, code string) error {
	value, err := json.Marshal(OTPRequested{
		Type:             EventOTPRequested,
		Email:            email,
		Code:             code,
		ExpiresInSeconds: int64(s.ttl / time.Second),
		OccurredAt:       s.now().UTC(),
	})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventOTPRequested)},
		},
	})
	if err != nil {
		return oops.Code("NOTIFY_KAFKA_FAILED").
			With("to", email).
			Wrapf(err, "publish otp event")
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
