package writer

import (
	"context"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	appconfig "recessionflow/config"
	"recessionflow/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStore publishes every object as one message on a topic, keyed by the
// object key.
type KafkaStore struct {
	writer messageWriter
	topic  string
	log    *logger.Log
}

// NewKafkaStore creates a store writing to the configured brokers and topic.
func NewKafkaStore(cfg *appconfig.Config) (*KafkaStore, error) {
	kcfg := cfg.Storage.Kafka
	if len(kcfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	ks := newKafkaStore(&kafka.Writer{
		Addr:                   kafka.TCP(kcfg.Brokers...),
		Topic:                  kcfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}, kcfg.Topic)
	ks.log.WithComponent("kafka_store").WithFields(logger.Fields{
		"brokers": kcfg.Brokers,
		"topic":   kcfg.Topic,
	}).Debug("kafka store initialized")
	return ks, nil
}

func newKafkaStore(w messageWriter, topic string) *KafkaStore {
	return &KafkaStore{writer: w, topic: topic, log: logger.GetLogger()}
}

func (k *KafkaStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(contentType)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.WithComponent("kafka_store").WithError(err).WithFields(logger.Fields{
			"key":   key,
			"topic": k.topic,
		}).Warn("failed to write message")
		return fmt.Errorf("failed to write %s to kafka: %w", key, err)
	}
	return nil
}

// Close flushes pending messages and releases broker connections.
func (k *KafkaStore) Close() error {
	return k.writer.Close()
}
