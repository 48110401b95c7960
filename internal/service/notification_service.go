package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/pkg/jobs"
	"github.com/noah-isme/zyu-enrollment-api/pkg/mailer"
)

const jobTypeResetCode = "reset_code"

// NotificationConfig tunes the mail worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService delivers outbound email through a background queue.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service and its queue. Start must be called before
// anything is enqueued.
func NewNotificationService(m mailer.Mailer, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	svc := &NotificationService{mailer: m, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("mail", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the mail workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains in-flight deliveries and stops the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// SendResetCode queues the password reset email.
func (s *NotificationService) SendResetCode(_ context.Context, email, code string, ttl time.Duration) error {
	msg := mailer.Message{
		To:      email,
		Subject: "ZY University - Password reset code",
		Body: fmt.Sprintf("Your password reset code is: %s\n\nIt expires in %d minutes. If you didn't request this, ignore this email.",
			code, int(ttl.Minutes())),
	}
	job := jobs.Job{ID: uuid.NewString(), Type: jobTypeResetCode, Payload: msg, Enqueued: time.Now().UTC()}
	if err := s.queue.Enqueue(job); err != nil {
		return fmt.Errorf("queue reset code email: %w", err)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		s.logger.Error("unexpected mail payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.RecordMailJob(false)
		return err
	}
	s.metrics.RecordMailJob(true)
	return nil
}
