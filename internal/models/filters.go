package models

import "time"

// CargoFilter — параметры выборки грузов. Пустые поля не фильтруют.
// Location-поля принимают уже развёрнутые в сервисе множества id
// (сам узел плюс его потомки).
type CargoFilter struct {
	Statuses             []CargoStatus
	VehicleTypes         []BodyType
	LoadingTypes         []LoadingType
	LoadingLocationIDs   []uint64
	UnloadingLocationIDs []uint64
	LoadingPointQuery    *string
	UnloadingPointQuery  *string
	LoadingDateFrom      *time.Time
	LoadingDateTo        *time.Time
	OwnerID              *string
	AssignedToID         *string
	SourceType           *SourceType
	MinWeight            *float64
	MaxWeight            *float64

	Limit  int
	Offset int
}

type RequestFilter struct {
	Statuses             []RequestStatus
	CarrierID            *string
	LoadingLocationIDs   []uint64
	UnloadingLocationIDs []uint64
	LoadingPointQuery    *string
	UnloadingPointQuery  *string
	ReadyDateFrom        *time.Time
	ReadyDateTo          *time.Time

	Limit  int
	Offset int
}

// CargoStats — агрегаты для сводки оператора.
type CargoStats struct {
	Total      uint64                 `json:"total"`
	ByStatus   map[CargoStatus]uint64 `json:"by_status"`
	BySource   map[SourceType]uint64  `json:"by_source"`
	TotalViews uint64                 `json:"total_views"`
}
