package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paircast/relay/internal/protocol"
	"github.com/paircast/relay/internal/sse"
)

func TestSendEvent(t *testing.T) {
	t.Run("writes the whole envelope on the data line", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := sendEvent(rec, rec, sse.NewShowCodeEvent("ABCD-2345"))
		require.NoError(t, err)

		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, "data: "), "frame must start with a data line, got %q", body)
		assert.True(t, strings.HasSuffix(body, "\n\n"), "frame must end with a blank line, got %q", body)

		payload := strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")
		ev, err := protocol.ParsePushEvent([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, protocol.PushShowCode, ev.Kind)
		assert.Equal(t, "ABCD-2345", ev.Code)

		assert.True(t, rec.Flushed, "frame must be flushed immediately")
	})

	t.Run("keeps the payload on one line", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := sendEvent(rec, rec, sse.NewUpdateEvent("line one, still one line"))
		require.NoError(t, err)

		trimmed := strings.TrimSuffix(rec.Body.String(), "\n\n")
		assert.NotContains(t, trimmed, "\n", "payload must fit a single data line")
	})

	t.Run("hideCode event carries no data payload fields", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := sendEvent(rec, rec, sse.NewHideCodeEvent())
		require.NoError(t, err)

		payload := strings.TrimSuffix(strings.TrimPrefix(rec.Body.String(), "data: "), "\n\n")

		var envelope map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(payload), &envelope))
		assert.JSONEq(t, `"hideCode"`, string(envelope["type"]))
	})
}
