package messages

import "time"

const (
	TopicCargoStatusChanged   = "cargolink.cargo.status-changed"
	TopicRequestStatusChanged = "cargolink.request.status-changed"
)

// CargoStatusChanged публикуется после коммита перехода статуса груза.
// Получатели рассылки вычисляются на стороне воркера по from/to.
type CargoStatusChanged struct {
	CargoID   uint64    `json:"cargo_id"`
	Title     string    `json:"title"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`

	ChangedByID  *string `json:"changed_by_id,omitempty"`
	OwnerID      *string `json:"owner_id,omitempty"`
	AssignedToID *string `json:"assigned_to_id,omitempty"`
	ApprovedByID *string `json:"approved_by_id,omitempty"`

	Comment *string `json:"comment,omitempty"`
}

type RequestStatusChanged struct {
	RequestID uint64    `json:"request_id"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`

	CarrierID    string  `json:"carrier_id"`
	AssignedByID *string `json:"assigned_by_id,omitempty"`

	CargoID    *uint64 `json:"cargo_id,omitempty"`
	CargoTitle *string `json:"cargo_title,omitempty"`

	OwnerID *string `json:"owner_id,omitempty"`
}
