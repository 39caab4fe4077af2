package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Version string
}

// KafkaPublisher writes one JSON message per completed checkout, keyed by
// record id so every event for a record lands on the same partition.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewKafkaPublisher(cfg KafkaConfig, log *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		err := errors.New("kafka brokers list is empty")
		log.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}
	if cfg.Topic == "" {
		err := errors.New("kafka topic is empty")
		log.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	version := sarama.DefaultVersion
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			log.Error("error parsing kafka version", slog.Any("error", err))
			return nil, err
		}
		version = v
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig(version))
	if err != nil {
		log.Error("failed to create kafka producer", slog.Any("error", err))
		return nil, err
	}
	return newKafkaPublisher(producer, cfg.Topic, log), nil
}

func newKafkaPublisher(producer sarama.AsyncProducer, topic string, log *slog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{producer: producer, topic: topic, log: log}
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for msg := range producer.Successes() {
			key, _ := msg.Key.Encode()
			p.log.Debug("checkout event delivered", slog.String("key", string(key)), slog.Int64("offset", msg.Offset))
		}
	}()
	go func() {
		defer p.wg.Done()
		for perr := range producer.Errors() {
			p.log.Error("failed to deliver checkout event", slog.Any("error", perr.Err))
		}
	}()
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev CheckoutCompleted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.RecordID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("Kind"), Value: []byte(ev.Kind)},
		},
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		p.log.Warn("context cancelled before publishing checkout event",
			slog.Any("error", ctx.Err()),
			slog.String("record_id", ev.RecordID),
		)
		return ctx.Err()
	}
}

// Close flushes pending messages and waits for their delivery reports.
func (p *KafkaPublisher) Close() error {
	p.log.Info("closing Kafka producer")
	err := p.producer.Close()
	if err != nil {
		p.log.Error("failed to close Kafka producer", slog.Any("error", err))
	}
	p.wg.Wait()
	return err
}

func saramaConfig(ver sarama.KafkaVersion) *sarama.Config {
	config := sarama.NewConfig()
	config.Version = ver
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	return config
}
