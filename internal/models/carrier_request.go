package models

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAssigned  RequestStatus = "assigned"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
)

// CarrierRequest — заявка перевозчика: предложение свободной машины,
// зеркальная к Cargo сторона рынка.
type CarrierRequest struct {
	ID        uint64
	CarrierID string
	VehicleID *uint64

	LoadingPoint        string
	UnloadingPoint      string
	LoadingLocationID   *uint64
	UnloadingLocationID *uint64

	ReadyDate    time.Time
	VehicleCount int

	PriceExpectation *float64
	PaymentTerms     *string
	Notes            *string

	Status RequestStatus

	AssignedCargoID *uint64
	AssignedByID    *string
	AssignedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CarrierRequestCreateInput struct {
	CarrierID string
	VehicleID *uint64

	LoadingPoint        string
	UnloadingPoint      string
	LoadingLocationID   *uint64
	UnloadingLocationID *uint64

	ReadyDate    time.Time
	VehicleCount int

	PriceExpectation *float64
	PaymentTerms     *string
	Notes            *string
}
