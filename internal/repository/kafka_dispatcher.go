package repository

import (
	"context"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	pkgkafka "drreport/pkg/kafka"
)

// KafkaDispatcher implements JobDispatcher over Kafka. Keying by ticker keeps
// one ticker's jobs on one partition.
type KafkaDispatcher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaDispatcher creates a Kafka job dispatcher.
func NewKafkaDispatcher(producer *pkgkafka.Producer, topic string) domrepo.JobDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job *models.ReportJob) error {
	return d.producer.Publish(ctx, d.topic, []byte(job.Ticker), job)
}

func (d *KafkaDispatcher) Close() error {
	if d.producer != nil {
		return d.producer.Close()
	}
	return nil
}
