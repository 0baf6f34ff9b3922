package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesto/internal/audit"
	"attesto/internal/audit/store/memory"
	"attesto/pkg/domain"
	"attesto/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	subject := domain.SubjectID("subject-1")
	event := audit.Event{
		Subject: subject.String(),
		Action:  string(audit.ActionAttestationRecorded),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionAttestationRecorded), events[0].Action)
}

func TestPublisher_SyncModePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("append failed")
	pub := audit.NewPublisher(failingStore{err: storeErr})
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "subject-1",
		Action:  string(audit.ActionPolicyVerified),
	})
	require.ErrorIs(t, err, storeErr)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(10))

	subject := domain.SubjectID("subject-2")
	err := pub.Emit(context.Background(), audit.Event{
		Subject: subject.String(),
		Action:  string(audit.ActionPolicyVerified),
	})
	require.NoError(t, err)

	pub.Close()

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionPolicyVerified), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(100))

	subject := domain.SubjectID("subject-3")
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: subject.String(),
			Action:  string(audit.ActionAttestationRecorded),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), subject)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_ReturnsError(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Emit(context.Background(), audit.Event{
				Subject: "subject-4",
				Action:  string(audit.ActionAttestationRecorded),
			})
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	subject := domain.SubjectID("subject-5")

	before := time.Now()
	err := pub.Emit(context.Background(), audit.Event{
		Subject: subject.String(),
		Action:  string(audit.ActionAttestationRecorded),
	})
	require.NoError(t, err)
	after := time.Now()

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, !events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	subject := domain.SubjectID("subject-6")
	customTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	err := pub.Emit(context.Background(), audit.Event{
		Subject:   subject.String(),
		Action:    string(audit.ActionAttestationRecorded),
		Timestamp: customTime,
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_FillsRequestIDFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	subject := domain.SubjectID("subject-7")
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")

	err := pub.Emit(ctx, audit.Event{
		Subject: subject.String(),
		Action:  string(audit.ActionPolicyVerified),
	})
	require.NoError(t, err)

	events, err := pub.List(ctx, subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-42", events[0].RequestID)
}

func TestPublisher_MultipleEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	subject := domain.SubjectID("subject-8")
	actions := []audit.Action{
		audit.ActionAttestationRecorded,
		audit.ActionPolicyVerified,
		audit.ActionAttestationRecorded,
	}
	for _, action := range actions {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: subject.String(),
			Action:  string(action),
		})
		require.NoError(t, err)
	}

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, string(audit.ActionAttestationRecorded), events[0].Action)
	assert.Equal(t, string(audit.ActionPolicyVerified), events[1].Action)
	assert.Equal(t, string(audit.ActionAttestationRecorded), events[2].Action)
}

func TestPublisher_DifferentSubjects(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	first := domain.SubjectID("subject-a")
	second := domain.SubjectID("subject-b")

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject: first.String(),
		Action:  string(audit.ActionAttestationRecorded),
	}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject: second.String(),
		Action:  string(audit.ActionPolicyVerified),
	}))

	events, err := pub.List(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionAttestationRecorded), events[0].Action)

	events, err = pub.List(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.ActionPolicyVerified), events[0].Action)
}

type failingStore struct {
	err error
}

func (s failingStore) Append(context.Context, audit.Event) error {
	return s.err
}

func (s failingStore) ListBySubject(context.Context, domain.SubjectID) ([]audit.Event, error) {
	return nil, s.err
}
