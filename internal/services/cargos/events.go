package cargos

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LogitTrans/cargolink/internal/broker/messages"
	"github.com/LogitTrans/cargolink/internal/models"
)

// eventPublisher шлёт события о переходах после успешного коммита.
// Ошибка публикации логируется и глотается: рассылка уведомлений не
// должна ронять саму операцию.
type eventPublisher struct {
	producer Producer
}

func newEventPublisher(p Producer) *eventPublisher {
	return &eventPublisher{producer: p}
}

func (e *eventPublisher) cargoChanged(ctx context.Context, c *models.Cargo, from models.CargoStatus, changedBy *string, comment *string) {
	if e.producer == nil {
		return
	}
	msg := messages.CargoStatusChanged{
		CargoID:      c.ID,
		Title:        c.Title,
		From:         string(from),
		To:           string(c.Status),
		ChangedAt:    time.Now().UTC(),
		ChangedByID:  changedBy,
		OwnerID:      c.OwnerID,
		AssignedToID: c.AssignedToID,
		ApprovedByID: c.ApprovedByID,
		Comment:      comment,
	}
	e.publish(ctx, messages.TopicCargoStatusChanged, fmt.Sprintf("%d", c.ID), msg)
}

func (e *eventPublisher) requestChanged(ctx context.Context, r *models.CarrierRequest, from models.RequestStatus, cargo *models.Cargo) {
	if e.producer == nil {
		return
	}
	msg := messages.RequestStatusChanged{
		RequestID:    r.ID,
		From:         string(from),
		To:           string(r.Status),
		ChangedAt:    time.Now().UTC(),
		CarrierID:    r.CarrierID,
		AssignedByID: r.AssignedByID,
	}
	if cargo != nil {
		msg.CargoID = &cargo.ID
		msg.CargoTitle = &cargo.Title
		msg.OwnerID = cargo.OwnerID
	}
	e.publish(ctx, messages.TopicRequestStatusChanged, fmt.Sprintf("%d", r.ID), msg)
}

func (e *eventPublisher) publish(ctx context.Context, topic, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal event", "topic", topic, "error", err.Error())
		return
	}
	if err := e.producer.Publish(ctx, topic, []byte(key), b); err != nil {
		slog.Error("publish event", "topic", topic, "key", key, "error", err.Error())
	}
}
