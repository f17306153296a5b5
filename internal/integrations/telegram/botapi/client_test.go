package botapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LogitTrans/cargolink/internal/integrations/telegram"
)

func TestClient_SendMessage_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "42", body["chat_id"])
		require.Equal(t, "привет", body["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "TOKEN")
	err := c.SendMessage(context.Background(), telegram.Message{ChatID: "42", Text: "привет"})
	require.NoError(t, err)
}

func TestClient_SendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "TOKEN")
	err := c.SendMessage(context.Background(), telegram.Message{ChatID: "42", Text: "hi"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestClient_SendMessage_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
	}))
	defer srv.Close()

	c := New(srv.URL, "TOKEN")
	err := c.SendMessage(context.Background(), telegram.Message{ChatID: "42", Text: "hi"})
	require.Error(t, err)
}
