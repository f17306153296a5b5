package fake

import (
	"context"
	"sync"

	"github.com/LogitTrans/cargolink/internal/integrations/telegram"
)

// FakeClient копит отправленные сообщения в памяти. Используется в тестах
// и при запуске воркера без настоящего токена бота.
type FakeClient struct {
	mu   sync.Mutex
	sent []telegram.Message
}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) SendMessage(ctx context.Context, msg telegram.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *FakeClient) Sent() []telegram.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]telegram.Message, len(f.sent))
	copy(out, f.sent)
	return out
}
