package tap

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
)

type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	// keyed by sender so one sender's chunks stay on one partition
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("tap: kafka producer: %w", err)
	}
	return newKafkaSinkWithProducer(p, topic), nil
}

func newKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Publish ignores ctx: the sync producer has its own timeouts.
func (s *KafkaSink) Publish(_ context.Context, r *Record) error {
	_, _, err := s.producer.SendMessage(producerMessage(s.topic, r))
	return err
}

func (s *KafkaSink) Close() error { return s.producer.Close() }

func producerMessage(topic string, r *Record) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(r.From),
		Value:     sarama.ByteEncoder(r.Data),
		Timestamp: r.When,
		Headers: []sarama.RecordHeader{
			{Key: []byte("seq"), Value: []byte(strconv.FormatUint(r.Seq, 10))},
			{Key: []byte("delivered"), Value: []byte(strconv.Itoa(r.Delivered))},
		},
	}
}
