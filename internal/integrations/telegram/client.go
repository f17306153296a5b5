package telegram

import "context"

// Message — одно уведомление пользователю. ChatID совпадает с Telegram ID
// получателя из таблицы users.
type Message struct {
	ChatID string
	Text   string
}

type Client interface {
	SendMessage(ctx context.Context, msg Message) error
}
