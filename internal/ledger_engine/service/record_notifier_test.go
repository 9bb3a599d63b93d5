package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/domain/outbox"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

func notifiedView() *payment.View {
	return &payment.View{
		Payment: payment.Payment{
			ID:              uuid.New(),
			ReservationCode: "RES-77",
			Amount:          decimal.NewFromInt(300),
			Currency:        shared.CurrencyCAD,
			Status:          shared.PaymentStatusPending,
			Active:          true,
		},
		ProviderName: "Hotel Maya",
	}
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker pool")
	}
}

func TestAsyncRecordNotifier_Delivered(t *testing.T) {
	sender := &MockRecordSender{}
	events := &MockPublisher{}
	outboxRepo := &MockOutboxRepo{}
	view := notifiedView()
	done := make(chan struct{})

	events.On("Publish", mock.Anything, view.ID.String(), mock.AnythingOfType("*payment.Event")).Return(nil)
	sender.On("Notify", mock.Anything, mock.MatchedBy(func(e *payment.Event) bool {
		return e.Action == shared.RecordActionCreate && e.Payment == view
	})).Return(nil).Run(func(mock.Arguments) { close(done) })

	notifier, err := NewAsyncRecordNotifier(2, sender, events, outboxRepo, time.Second, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, notifier.Capacity())

	notifier.Notify(context.Background(), shared.RecordActionCreate, view)
	waitFor(t, done)
	require.NoError(t, notifier.Shutdown(time.Second))

	events.AssertExpectations(t)
	sender.AssertExpectations(t)
	outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAsyncRecordNotifier_FailureIsQueued(t *testing.T) {
	sender := &MockRecordSender{}
	outboxRepo := &MockOutboxRepo{}
	view := notifiedView()
	done := make(chan struct{})

	sender.On("Notify", mock.Anything, mock.AnythingOfType("*payment.Event")).Return(errors.New("503 from record service"))
	outboxRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *outbox.Message) bool {
		return m.PaymentID == view.ID &&
			m.Action == shared.RecordActionDelete &&
			m.Status == shared.OutboxStatusPending &&
			m.Attempts == 1 &&
			m.LastError == "503 from record service"
	})).Return(nil).Run(func(mock.Arguments) { close(done) })

	notifier, err := NewAsyncRecordNotifier(1, sender, nil, outboxRepo, time.Second, testLogger())
	require.NoError(t, err)

	notifier.Notify(context.Background(), shared.RecordActionDelete, view)
	waitFor(t, done)
	require.NoError(t, notifier.Shutdown(time.Second))

	outboxRepo.AssertExpectations(t)
}

func TestAsyncRecordNotifier_SaturatedPoolDoesNotBlock(t *testing.T) {
	sender := &MockRecordSender{}
	outboxRepo := &MockOutboxRepo{}
	busy, overflow := notifiedView(), notifiedView()
	started := make(chan struct{})
	release := make(chan struct{})

	sender.On("Notify", mock.Anything, mock.MatchedBy(func(e *payment.Event) bool {
		return e.Payment == busy
	})).Return(nil).Run(func(mock.Arguments) {
		close(started)
		<-release
	})
	outboxRepo.On("Create", mock.Anything, mock.MatchedBy(func(m *outbox.Message) bool {
		return m.PaymentID == overflow.ID && m.LastError == ants.ErrPoolOverload.Error()
	})).Return(nil)

	notifier, err := NewAsyncRecordNotifier(1, sender, nil, outboxRepo, 5*time.Second, testLogger())
	require.NoError(t, err)

	notifier.Notify(context.Background(), shared.RecordActionUpdate, busy)
	waitFor(t, started)

	begin := time.Now()
	notifier.Notify(context.Background(), shared.RecordActionUpdate, overflow)
	assert.Less(t, time.Since(begin), 500*time.Millisecond)

	close(release)
	require.NoError(t, notifier.Shutdown(time.Second))

	outboxRepo.AssertExpectations(t)
	sender.AssertNotCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(e *payment.Event) bool {
		return e.Payment == overflow
	}))
}

func TestAsyncRecordNotifier_EventsOnly(t *testing.T) {
	events := &MockPublisher{}
	outboxRepo := &MockOutboxRepo{}
	view := notifiedView()
	done := make(chan struct{})

	events.On("Publish", mock.Anything, view.ID.String(), mock.Anything).
		Return(errors.New("broker down")).
		Run(func(mock.Arguments) { close(done) })

	notifier, err := NewAsyncRecordNotifier(1, nil, events, outboxRepo, time.Second, testLogger())
	require.NoError(t, err)

	notifier.Notify(context.Background(), shared.RecordActionUpdate, view)
	waitFor(t, done)
	require.NoError(t, notifier.Shutdown(time.Second))

	// Without a system of record there is nothing to retry
	outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAsyncRecordNotifier_NilView(t *testing.T) {
	sender := &MockRecordSender{}
	notifier, err := NewAsyncRecordNotifier(1, sender, nil, &MockOutboxRepo{}, time.Second, testLogger())
	require.NoError(t, err)

	notifier.Notify(context.Background(), shared.RecordActionCreate, nil)
	require.NoError(t, notifier.Shutdown(time.Second))
	sender.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestInlineRecordNotifier(t *testing.T) {
	sender := &MockRecordSender{}
	view := notifiedView()
	sender.On("Notify", mock.Anything, mock.AnythingOfType("*payment.Event")).Return(nil)

	notifier := NewInlineRecordNotifier(sender, nil, &MockOutboxRepo{}, time.Second, testLogger())
	notifier.Notify(context.Background(), shared.RecordActionUpdate, view)

	// Delivered before Notify returns
	sender.AssertNumberOfCalls(t, "Notify", 1)
	assert.Equal(t, 0, notifier.Capacity())
	assert.NoError(t, notifier.Shutdown(time.Second))
}
