package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LogitTrans/cargolink/internal/integrations/telegram"
)

func TestFakeClient_SendMessage(t *testing.T) {
	c := New()
	require.NoError(t, c.SendMessage(context.Background(), telegram.Message{ChatID: "1", Text: "a"}))
	require.NoError(t, c.SendMessage(context.Background(), telegram.Message{ChatID: "2", Text: "b"}))

	sent := c.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, "1", sent[0].ChatID)
	require.Equal(t, "b", sent[1].Text)
}
