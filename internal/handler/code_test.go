package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paircast/relay/internal/model"
	"github.com/paircast/relay/internal/protocol"
	"github.com/paircast/relay/internal/sse"
)

type fakeCurrentCoder struct {
	code *model.AccessCode
	err  error
}

func (f *fakeCurrentCoder) Current(context.Context) (*model.AccessCode, error) {
	return f.code, f.err
}

// stubCodeRepo records ResetLastUsed calls; the handler uses nothing else.
type stubCodeRepo struct {
	resetCodes []string
	resetErr   error
}

func (s *stubCodeRepo) FindByCode(context.Context, string) (*model.AccessCode, error) {
	return nil, nil
}

func (s *stubCodeRepo) Current(context.Context) (*model.AccessCode, error) {
	return nil, nil
}

func (s *stubCodeRepo) NewestAfter(context.Context, time.Time) (*model.AccessCode, error) {
	return nil, nil
}

func (s *stubCodeRepo) Create(context.Context, model.CreateAccessCodeParams) (*model.AccessCode, error) {
	return nil, nil
}

func (s *stubCodeRepo) TouchLastUsed(context.Context, string, time.Time) error {
	return nil
}

func (s *stubCodeRepo) ResetLastUsed(_ context.Context, code string) error {
	s.resetCodes = append(s.resetCodes, code)
	return s.resetErr
}

func (s *stubCodeRepo) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

type recordingPublisher struct {
	events []sse.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event sse.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func TestCodeHandler(t *testing.T) {
	activeCode := &model.AccessCode{
		Code:      "ABCD-2345",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	t.Run("returns the active code and re-announces it", func(t *testing.T) {
		repo := &stubCodeRepo{}
		pub := &recordingPublisher{}
		h := NewCodeHandler(&fakeCurrentCoder{code: activeCode}, repo, pub)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/code/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp CodeResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ABCD-2345", resp.Code)

		assert.Equal(t, []string{"ABCD-2345"}, repo.resetCodes)

		require.Len(t, pub.events, 1)
		payload, err := json.Marshal(pub.events[0])
		require.NoError(t, err)
		ev, err := protocol.ParsePushEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, protocol.PushShowCode, ev.Kind)
		assert.Equal(t, "ABCD-2345", ev.Code)
	})

	t.Run("returns 404 when no code is active", func(t *testing.T) {
		repo := &stubCodeRepo{}
		pub := &recordingPublisher{}
		h := NewCodeHandler(&fakeCurrentCoder{}, repo, pub)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/code/", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, repo.resetCodes)
		assert.Empty(t, pub.events)
	})

	t.Run("returns 500 when the lookup fails", func(t *testing.T) {
		h := NewCodeHandler(&fakeCurrentCoder{err: errors.New("db down")}, &stubCodeRepo{}, &recordingPublisher{})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/code/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("returns 500 when clearing the first-use mark fails", func(t *testing.T) {
		repo := &stubCodeRepo{resetErr: errors.New("db down")}
		pub := &recordingPublisher{}
		h := NewCodeHandler(&fakeCurrentCoder{code: activeCode}, repo, pub)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/code/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, pub.events)
	})

	t.Run("still answers when the announcement fails", func(t *testing.T) {
		repo := &stubCodeRepo{}
		pub := &recordingPublisher{err: errors.New("redis down")}
		h := NewCodeHandler(&fakeCurrentCoder{code: activeCode}, repo, pub)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/code/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
