package service

import (
	"context"
	"errors"
	"testing"

	"github.com/oliveiraadan/equibid/internal/domain"
	"go.uber.org/zap"
)

func TestJobServiceCreate(t *testing.T) {
	t.Parallel()

	var stored *domain.NotificationJob
	jobs := &fakeJobRepo{
		createFn: func(_ context.Context, j *domain.NotificationJob) error {
			stored = j
			return nil
		},
	}

	svc, err := NewJobService(jobs, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJobService() error = %v", err)
	}

	created, err := svc.Create(context.Background(), &domain.NotificationJob{
		Channel:   domain.ChannelWhatsApp,
		Recipient: "  5511999998888  ",
		SearchID:  "search-1",
		LotID:     "lot-1",
		// Client-supplied state must be discarded.
		Status:       domain.StatusSent,
		AttemptCount: 3,
		Responded:    true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if stored == nil {
		t.Fatal("Create() did not persist the job")
	}
	if created.ID == "" || created.CorrelationID == "" {
		t.Error("Create() must mint id and correlation id")
	}
	if created.ID == created.CorrelationID {
		t.Error("id and correlation id must be distinct")
	}
	if created.Status != domain.StatusPending {
		t.Errorf("status = %q, want PENDING", created.Status)
	}
	if created.Recipient != "5511999998888" {
		t.Errorf("recipient = %q, want trimmed", created.Recipient)
	}
	if created.AttemptCount != 0 || created.Responded {
		t.Errorf("dispatch state not reset: attempts %d responded %v", created.AttemptCount, created.Responded)
	}
	if created.MaxAttempts != domain.DefaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want default %d", created.MaxAttempts, domain.DefaultMaxAttempts)
	}
}

func TestJobServiceCreate_Invalid(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobRepo{
		createFn: func(context.Context, *domain.NotificationJob) error {
			t.Fatal("Create() should not persist an invalid job")
			return nil
		},
	}

	svc, err := NewJobService(jobs, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJobService() error = %v", err)
	}

	tests := []struct {
		name string
		job  *domain.NotificationJob
	}{
		{name: "nil job", job: nil},
		{name: "missing recipient", job: &domain.NotificationJob{Channel: domain.ChannelTelegram, SearchID: "s", LotID: "l"}},
		{name: "missing channel", job: &domain.NotificationJob{Recipient: "987654321", SearchID: "s", LotID: "l"}},
		{name: "missing search", job: &domain.NotificationJob{Channel: domain.ChannelTelegram, Recipient: "987654321", LotID: "l"}},
		{name: "missing lot", job: &domain.NotificationJob{Channel: domain.ChannelTelegram, Recipient: "987654321", SearchID: "s"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := svc.Create(context.Background(), tt.job); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestJobServiceAttempts_ChecksJobExists(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.NotificationJob, error) {
			return nil, domain.ErrNotFound
		},
	}

	svc, err := NewJobService(jobs, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJobService() error = %v", err)
	}

	if _, err := svc.Attempts(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Attempts() error = %v, want ErrNotFound", err)
	}
}

func TestJobServiceGetByID_EmptyID(t *testing.T) {
	t.Parallel()

	svc, err := NewJobService(&fakeJobRepo{}, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewJobService() error = %v", err)
	}

	if _, err := svc.GetByID(context.Background(), "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetByID() error = %v, want ErrValidation", err)
	}
}
