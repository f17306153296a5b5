package models

import "time"

type BodyType string

const (
	BodyTent         BodyType = "tent"
	BodyRefrigerator BodyType = "refrigerator"
	BodyIsothermal   BodyType = "isothermal"
	BodyContainer    BodyType = "container"
	BodyCarCarrier   BodyType = "car_carrier"
	BodyBoard        BodyType = "board"
)

func (b BodyType) Valid() bool {
	switch b {
	case BodyTent, BodyRefrigerator, BodyIsothermal, BodyContainer, BodyCarCarrier, BodyBoard:
		return true
	}
	return false
}

type LoadingType string

const (
	LoadingRamps      LoadingType = "ramps"
	LoadingNoDoors    LoadingType = "no_doors"
	LoadingSide       LoadingType = "side"
	LoadingTop        LoadingType = "top"
	LoadingHydroBoard LoadingType = "hydro_board"
)

func (l LoadingType) Valid() bool {
	switch l {
	case LoadingRamps, LoadingNoDoors, LoadingSide, LoadingTop, LoadingHydroBoard:
		return true
	}
	return false
}

type Vehicle struct {
	ID                  uint64
	OwnerID             string
	BodyType            BodyType
	LoadingType         LoadingType
	CapacityTons        float64
	VolumeM3            float64
	Length              float64
	Width               float64
	Height              float64
	RegistrationNumber  string
	RegistrationCountry string
	ADR                 bool
	Dozvol              bool
	TIR                 bool
	IsActive            bool
	IsVerified          bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type VehicleCreateInput struct {
	OwnerID             string
	BodyType            BodyType
	LoadingType         LoadingType
	CapacityTons        float64
	VolumeM3            float64
	Length              float64
	Width               float64
	Height              float64
	RegistrationNumber  string
	RegistrationCountry string
	ADR                 bool
	Dozvol              bool
	TIR                 bool
}
