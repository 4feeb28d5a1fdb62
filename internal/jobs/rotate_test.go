package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paircast/relay/internal/model"
	"github.com/paircast/relay/internal/protocol"
	"github.com/paircast/relay/internal/service"
	"github.com/paircast/relay/internal/sse"
)

type fakeCodeRepo struct {
	mu          sync.Mutex
	current     *model.AccessCode
	created     []model.CreateAccessCodeParams
	deleted     int64
	deleteCalls int
}

func (f *fakeCodeRepo) FindByCode(context.Context, string) (*model.AccessCode, error) {
	return nil, nil
}

func (f *fakeCodeRepo) Current(context.Context) (*model.AccessCode, error) {
	return f.current, nil
}

func (f *fakeCodeRepo) NewestAfter(context.Context, time.Time) (*model.AccessCode, error) {
	return nil, nil
}

func (f *fakeCodeRepo) Create(_ context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	f.mu.Lock()
	f.created = append(f.created, params)
	f.mu.Unlock()
	return &model.AccessCode{
		Code:      params.Code,
		CreatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}, nil
}

func (f *fakeCodeRepo) TouchLastUsed(context.Context, string, time.Time) error {
	return nil
}

func (f *fakeCodeRepo) ResetLastUsed(context.Context, string) error {
	return nil
}

func (f *fakeCodeRepo) DeleteExpired(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleted, nil
}

func (f *fakeCodeRepo) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestRotateJob(t *testing.T) {
	t.Run("mints and announces a code when none is in circulation", func(t *testing.T) {
		repo := &fakeCodeRepo{}
		pub := &capturingPublisher{}
		job := NewRotateJob(service.NewCodeService(repo, 5*time.Minute), pub, time.Hour)

		job.rotate()

		require.Len(t, repo.created, 1)
		require.Len(t, pub.events, 1)

		payload, err := json.Marshal(pub.events[0])
		require.NoError(t, err)
		ev, err := protocol.ParsePushEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, protocol.PushShowCode, ev.Kind)
		assert.Equal(t, repo.created[0].Code, ev.Code)
	})

	t.Run("leaves an unexpired code alone", func(t *testing.T) {
		repo := &fakeCodeRepo{
			current: &model.AccessCode{
				Code:      "ABCD-2345",
				CreatedAt: time.Now(),
				ExpiresAt: time.Now().Add(3 * time.Minute),
			},
		}
		pub := &capturingPublisher{}
		job := NewRotateJob(service.NewCodeService(repo, 5*time.Minute), pub, time.Hour)

		job.rotate()

		assert.Empty(t, repo.created)
		assert.Empty(t, pub.events)
	})

	t.Run("start runs an immediate rotation", func(t *testing.T) {
		repo := &fakeCodeRepo{}
		pub := &capturingPublisher{}
		job := NewRotateJob(service.NewCodeService(repo, 5*time.Minute), pub, time.Hour)

		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool {
			return pub.count() > 0
		}, time.Second, 10*time.Millisecond)
	})
}

func TestCleanupJob(t *testing.T) {
	t.Run("start prunes immediately", func(t *testing.T) {
		repo := &fakeCodeRepo{deleted: 3}
		job := NewCleanupJob(repo, time.Hour)

		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool {
			return repo.deleteCount() > 0
		}, time.Second, 10*time.Millisecond)
	})
}
