package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	pkgkafka "drreport/pkg/kafka"
)

var jobValidate = validator.New()

// KafkaReportsHandler consumes report jobs and runs the worker. Payloads must
// carry the mode discriminant; anything shape-inferred is rejected up front.
type KafkaReportsHandler struct {
	topic   string
	worker  *ReportWorker
	metrics domrepo.Metrics
}

func NewKafkaReportsHandler(topic string, worker *ReportWorker, metrics domrepo.Metrics) *KafkaReportsHandler {
	return &KafkaReportsHandler{topic: topic, worker: worker, metrics: metrics}
}

func (h *KafkaReportsHandler) Topic() string { return h.topic }

func (h *KafkaReportsHandler) Handle(ctx context.Context, b []byte) error {
	var job models.ReportJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.metrics.RecordError("job_unmarshal")
		return fmt.Errorf("unmarshal report job: %w", err)
	}
	if err := jobValidate.Struct(&job); err != nil {
		h.metrics.RecordError("job_invalid")
		return fmt.Errorf("invalid report job: %w", err)
	}

	// Worker outcomes (skip, per-ticker failure) are terminal here; only
	// infrastructure errors go back to the consumer for retry.
	_, err := h.worker.Process(ctx, &job)
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaReportsHandler)(nil)
