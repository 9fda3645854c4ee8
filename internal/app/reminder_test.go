package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketrack/payments-service/internal/domain"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/payments"
)

type reminderRepoStub struct {
	store.Repository

	candidates []domain.ReminderCandidate
	recorded   []uuid.UUID
}

func (s *reminderRepoStub) ListSharesDueReminder(ctx context.Context, maxCount int, minInterval time.Duration, now time.Time) ([]domain.ReminderCandidate, error) {
	return s.candidates, nil
}

func (s *reminderRepoStub) RecordReminderSent(ctx context.Context, shareID uuid.UUID, sentAt time.Time) error {
	s.recorded = append(s.recorded, shareID)
	return nil
}

func reminderCandidate(expiresAt time.Time) domain.ReminderCandidate {
	return domain.ReminderCandidate{
		Share: domain.PaymentShare{
			ID:           uuid.New(),
			Name:         "Ada",
			Email:        "ada@example.com",
			ShareAmount:  decimal.RequireFromString("5000.00"),
			Currency:     "NGN",
			PaymentToken: "tok_abc",
		},
		EventTitle: "Lagos Tech Fest",
		ExpiresAt:  expiresAt,
	}
}

func TestHoursRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{"three hours out", now.Add(3 * time.Hour), 3},
		{"rounds to nearest hour", now.Add(2*time.Hour + 40*time.Minute), 3},
		{"rounds down under half", now.Add(2*time.Hour + 20*time.Minute), 2},
		{"already past clamps to zero", now.Add(-5 * time.Hour), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			candidate := reminderCandidate(tc.expiresAt)
			if got := candidate.HoursRemaining(now); got != tc.want {
				t.Fatalf("HoursRemaining() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSendPaymentReminders(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newReminderService := func(repo *reminderRepoStub, email *recordingMessenger) *Service {
		dispatcher := messaging.NewDispatcher()
		dispatcher.Register(email)
		svc := NewService(repo, payments.NewRegistry(), &stubTicketingClient{}, dispatcher, &recordingPublisher{}, "https://tickets.example.com")
		svc.now = func() time.Time { return now }
		return svc
	}

	t.Run("sends and records one reminder per due share", func(t *testing.T) {
		repo := &reminderRepoStub{candidates: []domain.ReminderCandidate{
			reminderCandidate(now.Add(6 * time.Hour)),
			reminderCandidate(now.Add(30 * time.Hour)),
		}}
		email := &recordingMessenger{}
		svc := newReminderService(repo, email)

		sent, err := svc.SendPaymentReminders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 2 {
			t.Fatalf("expected 2 reminders sent, got %d", sent)
		}
		if len(repo.recorded) != 2 {
			t.Fatalf("expected 2 reminders recorded, got %d", len(repo.recorded))
		}
		if !strings.Contains(email.sent[0].Body, "6 hours left") {
			t.Fatalf("expected hours remaining in reminder body, got %q", email.sent[0].Body)
		}
	})

	t.Run("failed send leaves the counter untouched", func(t *testing.T) {
		repo := &reminderRepoStub{candidates: []domain.ReminderCandidate{
			reminderCandidate(now.Add(6 * time.Hour)),
		}}
		email := &recordingMessenger{err: errors.New("smtp unavailable")}
		svc := newReminderService(repo, email)

		sent, err := svc.SendPaymentReminders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent != 0 {
			t.Fatalf("expected no reminders sent, got %d", sent)
		}
		if len(repo.recorded) != 0 {
			t.Fatalf("counter must not move for a failed send, recorded %d", len(repo.recorded))
		}
	})

	t.Run("final hour switches to the urgent wording", func(t *testing.T) {
		repo := &reminderRepoStub{candidates: []domain.ReminderCandidate{
			reminderCandidate(now.Add(45 * time.Minute)),
		}}
		email := &recordingMessenger{}
		svc := newReminderService(repo, email)

		if _, err := svc.SendPaymentReminders(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(email.sent[0].Body, "Time is almost up") {
			t.Fatalf("expected urgent wording, got %q", email.sent[0].Body)
		}
	})
}
