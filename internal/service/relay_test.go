package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paircast/relay/internal/model"
	"github.com/paircast/relay/internal/protocol"
	"github.com/paircast/relay/internal/sse"
)

// recordingPublisher collects published events in order.
type recordingPublisher struct {
	events []sse.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event sse.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func updateMsg(code, body string) protocol.UpdateMessage {
	return protocol.UpdateMessage{Type: protocol.TypeUpdate, Code: code, Body: body}
}

func TestRelayServiceHandleUpdate(t *testing.T) {
	now := time.Now()

	t.Run("unknown code replies invalid and publishes nothing", func(t *testing.T) {
		repo := new(mockCodeRepo)
		pub := &recordingPublisher{}
		svc := NewRelayService(NewCodeService(repo, 5*time.Minute), pub)

		repo.On("FindByCode", mock.Anything, "NOPE-0000").Return(nil, nil)

		reply := svc.HandleUpdate(context.Background(), updateMsg("NOPE-0000", "hello"))

		assert.Equal(t, protocol.ReplyInvalid, reply)
		assert.Empty(t, pub.events)
	})

	t.Run("superseded code replies expired and publishes nothing", func(t *testing.T) {
		repo := new(mockCodeRepo)
		pub := &recordingPublisher{}
		svc := NewRelayService(NewCodeService(repo, 5*time.Minute), pub)

		created := now.Add(-10 * time.Minute)
		usedAt := now.Add(-time.Minute)

		repo.On("FindByCode", mock.Anything, "ABCD-2345").Return(&model.AccessCode{
			Code:      "ABCD-2345",
			CreatedAt: created,
		}, nil)
		repo.On("NewestAfter", mock.Anything, created).Return(&model.AccessCode{
			Code:       "WXYZ-6789",
			CreatedAt:  now.Add(-5 * time.Minute),
			LastUsedAt: &usedAt,
		}, nil)

		reply := svc.HandleUpdate(context.Background(), updateMsg("ABCD-2345", "hello"))

		assert.Equal(t, protocol.ReplyExpired, reply)
		assert.Empty(t, pub.events)
	})

	t.Run("first use hides the code before relaying", func(t *testing.T) {
		repo := new(mockCodeRepo)
		pub := &recordingPublisher{}
		svc := NewRelayService(NewCodeService(repo, 5*time.Minute), pub)

		created := now.Add(-time.Minute)

		repo.On("FindByCode", mock.Anything, "ABCD-2345").Return(&model.AccessCode{
			Code:      "ABCD-2345",
			CreatedAt: created,
		}, nil)
		repo.On("NewestAfter", mock.Anything, created).Return(nil, nil)
		repo.On("TouchLastUsed", mock.Anything, "ABCD-2345", mock.Anything).Return(nil)

		reply := svc.HandleUpdate(context.Background(), updateMsg("ABCD-2345", "hello"))

		assert.Equal(t, protocol.ReplyRelayed, reply)
		require.Len(t, pub.events, 2)
		assert.Equal(t, protocol.TypeHideCode, pub.events[0].Type)
		assert.Equal(t, protocol.TypeUpdate, pub.events[1].Type)
	})

	t.Run("subsequent use relays without hiding", func(t *testing.T) {
		repo := new(mockCodeRepo)
		pub := &recordingPublisher{}
		svc := NewRelayService(NewCodeService(repo, 5*time.Minute), pub)

		created := now.Add(-time.Minute)
		usedAt := now.Add(-30 * time.Second)

		repo.On("FindByCode", mock.Anything, "ABCD-2345").Return(&model.AccessCode{
			Code:       "ABCD-2345",
			CreatedAt:  created,
			LastUsedAt: &usedAt,
		}, nil)
		repo.On("NewestAfter", mock.Anything, created).Return(nil, nil)
		repo.On("TouchLastUsed", mock.Anything, "ABCD-2345", mock.Anything).Return(nil)

		reply := svc.HandleUpdate(context.Background(), updateMsg("ABCD-2345", "again"))

		assert.Equal(t, protocol.ReplyRelayed, reply)
		require.Len(t, pub.events, 1)
		assert.Equal(t, protocol.TypeUpdate, pub.events[0].Type)

		payload, err := json.Marshal(pub.events[0])
		require.NoError(t, err)

		ev, err := protocol.ParsePushEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, "again", ev.Body)
	})
}
