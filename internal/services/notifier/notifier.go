package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/broker/messages"
	"github.com/LogitTrans/cargolink/internal/integrations/telegram"
	"github.com/LogitTrans/cargolink/internal/models"
)

type Repository interface {
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]*models.User, error)
}

// Notifier превращает события переходов в личные сообщения. Ошибка
// отправки одному получателю логируется и не блокирует остальных,
// сообщение из топика при этом считается обработанным.
type Notifier struct {
	repo Repository
	tg   telegram.Client

	totalSent   atomic.Int64
	totalErrors atomic.Int64
}

func New(repo Repository, tg telegram.Client) *Notifier {
	return &Notifier{repo: repo, tg: tg}
}

type Stats struct {
	TotalSent   int64 `json:"totalSent"`
	TotalErrors int64 `json:"totalErrors"`
}

func (n *Notifier) Stats() Stats {
	return Stats{
		TotalSent:   n.totalSent.Load(),
		TotalErrors: n.totalErrors.Load(),
	}
}

// HandleCargoEvent — обработчик топика событий по грузам.
func (n *Notifier) HandleCargoEvent(ctx context.Context, key, value []byte) error {
	var ev messages.CargoStatusChanged
	if err := json.Unmarshal(value, &ev); err != nil {
		// битое сообщение ретраить бессмысленно
		slog.Error("decode cargo event", "key", string(key), "error", err.Error())
		return nil
	}

	recipients, text, err := n.cargoRecipients(ctx, ev)
	if err != nil {
		return err
	}
	n.send(ctx, recipients, text)
	return nil
}

// HandleRequestEvent — обработчик топика событий по заявкам.
func (n *Notifier) HandleRequestEvent(ctx context.Context, key, value []byte) error {
	var ev messages.RequestStatusChanged
	if err := json.Unmarshal(value, &ev); err != nil {
		slog.Error("decode request event", "key", string(key), "error", err.Error())
		return nil
	}

	recipients, text := requestRecipients(ev)
	n.send(ctx, recipients, text)
	return nil
}

func (n *Notifier) cargoRecipients(ctx context.Context, ev messages.CargoStatusChanged) ([]string, string, error) {
	switch models.CargoStatus(ev.To) {
	case models.CargoPendingApproval:
		ids, err := n.roleIDs(ctx, models.RoleManager)
		if err != nil {
			return nil, "", err
		}
		return ids, fmt.Sprintf("Новый груз «%s» ожидает одобрения.", ev.Title), nil

	case models.CargoManagerApproved:
		ids, err := n.roleIDs(ctx, models.RoleStudent)
		if err != nil {
			return nil, "", err
		}
		return ids, fmt.Sprintf("Груз «%s» одобрен и готов к назначению перевозчика.", ev.Title), nil

	case models.CargoAssigned:
		return collect(ev.AssignedToID), fmt.Sprintf("Вам назначен груз «%s». Подтвердите или отклоните назначение.", ev.Title), nil

	case models.CargoInProgress:
		return collect(ev.OwnerID), fmt.Sprintf("Перевозчик приступил к выполнению груза «%s».", ev.Title), nil

	case models.CargoCompleted:
		return collect(ev.OwnerID, ev.ApprovedByID), fmt.Sprintf("Груз «%s» доставлен.", ev.Title), nil

	case models.CargoCancelled:
		return collect(ev.OwnerID, ev.ApprovedByID, ev.AssignedToID), fmt.Sprintf("Груз «%s» отменён.", ev.Title), nil

	case models.CargoRejected:
		text := fmt.Sprintf("Груз «%s» отклонён модератором.", ev.Title)
		if ev.Comment != nil && *ev.Comment != "" {
			text += " Причина: " + *ev.Comment
		}
		return collect(ev.OwnerID), text, nil

	case models.CargoExpired:
		return collect(ev.OwnerID), fmt.Sprintf("Срок погрузки груза «%s» прошёл, объявление снято с публикации.", ev.Title), nil
	}
	return nil, "", nil
}

func requestRecipients(ev messages.RequestStatusChanged) ([]string, string) {
	title := ""
	if ev.CargoTitle != nil {
		title = *ev.CargoTitle
	}

	switch models.RequestStatus(ev.To) {
	case models.RequestAssigned:
		return []string{ev.CarrierID}, fmt.Sprintf("На вашу заявку назначен груз «%s». Подтвердите или отклоните.", title)
	case models.RequestAccepted:
		return collect(ev.AssignedByID, ev.OwnerID), fmt.Sprintf("Перевозчик принял груз «%s».", title)
	case models.RequestRejected:
		return collect(ev.AssignedByID), fmt.Sprintf("Перевозчик отклонил назначение по грузу «%s».", title)
	case models.RequestCompleted:
		return collect(ev.AssignedByID, ev.OwnerID), "Перевозчик отметил заявку выполненной."
	}
	return nil, ""
}

func (n *Notifier) roleIDs(ctx context.Context, role models.UserRole) ([]string, error) {
	users, err := n.repo.ListActiveByRole(ctx, role)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", role)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.TelegramID)
	}
	return ids, nil
}

func (n *Notifier) send(ctx context.Context, ids []string, text string) {
	if text == "" || len(ids) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if err := n.tg.SendMessage(ctx, telegram.Message{ChatID: id, Text: text}); err != nil {
			n.totalErrors.Add(1)
			slog.Error("send notification", "chat_id", id, "error", err.Error())
			continue
		}
		n.totalSent.Add(1)
	}
}

func collect(ids ...*string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}
