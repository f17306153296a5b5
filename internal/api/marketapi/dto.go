package marketapi

import (
	"time"

	"github.com/LogitTrans/cargolink/internal/models"
)

// DTO-слой: JSON-представление моделей. Времена — RFC3339,
// идентификаторы пользователей — Telegram ID строкой.

type userDTO struct {
	TelegramID  string  `json:"telegram_id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name,omitempty"`
	Username    string  `json:"username,omitempty"`
	Role        string  `json:"role"`
	Tariff      *string `json:"tariff,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	IsActive    bool    `json:"is_active"`
	IsVerified  bool    `json:"is_verified"`
	Rating      float64 `json:"rating"`
}

func toUserDTO(u *models.User) userDTO {
	var tariff *string
	if u.Tariff != nil {
		t := string(*u.Tariff)
		tariff = &t
	}
	return userDTO{
		TelegramID:  u.TelegramID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Username:    u.Username,
		Role:        string(u.Role),
		Tariff:      tariff,
		PhoneNumber: u.PhoneNumber,
		CompanyName: u.CompanyName,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		Rating:      u.Rating,
	}
}

type registerRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Username    string  `json:"username"`
	Role        string  `json:"role"`
	PhoneNumber *string `json:"phone_number"`
	CompanyName *string `json:"company_name"`
}

type vehicleDTO struct {
	ID                  uint64  `json:"id"`
	OwnerID             string  `json:"owner_id"`
	BodyType            string  `json:"body_type"`
	LoadingType         string  `json:"loading_type"`
	CapacityTons        float64 `json:"capacity_tons"`
	VolumeM3            float64 `json:"volume_m3"`
	Length              float64 `json:"length"`
	Width               float64 `json:"width"`
	Height              float64 `json:"height"`
	RegistrationNumber  string  `json:"registration_number"`
	RegistrationCountry string  `json:"registration_country"`
	ADR                 bool    `json:"adr"`
	Dozvol              bool    `json:"dozvol"`
	TIR                 bool    `json:"tir"`
	IsActive            bool    `json:"is_active"`
	IsVerified          bool    `json:"is_verified"`
}

func toVehicleDTO(v *models.Vehicle) vehicleDTO {
	return vehicleDTO{
		ID:                  v.ID,
		OwnerID:             v.OwnerID,
		BodyType:            string(v.BodyType),
		LoadingType:         string(v.LoadingType),
		CapacityTons:        v.CapacityTons,
		VolumeM3:            v.VolumeM3,
		Length:              v.Length,
		Width:               v.Width,
		Height:              v.Height,
		RegistrationNumber:  v.RegistrationNumber,
		RegistrationCountry: v.RegistrationCountry,
		ADR:                 v.ADR,
		Dozvol:              v.Dozvol,
		TIR:                 v.TIR,
		IsActive:            v.IsActive,
		IsVerified:          v.IsVerified,
	}
}

type vehicleCreateRequest struct {
	BodyType            string  `json:"body_type"`
	LoadingType         string  `json:"loading_type"`
	CapacityTons        float64 `json:"capacity_tons"`
	VolumeM3            float64 `json:"volume_m3"`
	Length              float64 `json:"length"`
	Width               float64 `json:"width"`
	Height              float64 `json:"height"`
	RegistrationNumber  string  `json:"registration_number"`
	RegistrationCountry string  `json:"registration_country"`
	ADR                 bool    `json:"adr"`
	Dozvol              bool    `json:"dozvol"`
	TIR                 bool    `json:"tir"`
}

func (r vehicleCreateRequest) toInput() models.VehicleCreateInput {
	return models.VehicleCreateInput{
		BodyType:            models.BodyType(r.BodyType),
		LoadingType:         models.LoadingType(r.LoadingType),
		CapacityTons:        r.CapacityTons,
		VolumeM3:            r.VolumeM3,
		Length:              r.Length,
		Width:               r.Width,
		Height:              r.Height,
		RegistrationNumber:  r.RegistrationNumber,
		RegistrationCountry: r.RegistrationCountry,
		ADR:                 r.ADR,
		Dozvol:              r.Dozvol,
		TIR:                 r.TIR,
	}
}

type locationDTO struct {
	ID             uint64            `json:"id"`
	Name           string            `json:"name"`
	Level          int16             `json:"level"`
	ParentID       *uint64           `json:"parent_id,omitempty"`
	CountryID      *uint64           `json:"country_id,omitempty"`
	Latitude       *float64          `json:"latitude,omitempty"`
	Longitude      *float64          `json:"longitude,omitempty"`
	Code           *string           `json:"code,omitempty"`
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

func toLocationDTO(l *models.Location) locationDTO {
	return locationDTO{
		ID:             l.ID,
		Name:           l.Name,
		Level:          int16(l.Level),
		ParentID:       l.ParentID,
		CountryID:      l.CountryID,
		Latitude:       l.Latitude,
		Longitude:      l.Longitude,
		Code:           l.Code,
		AdditionalData: l.AdditionalData,
	}
}

type locationImportItem struct {
	Name           string            `json:"name"`
	Level          int16             `json:"level"`
	ParentID       *uint64           `json:"parent_id"`
	CountryID      *uint64           `json:"country_id"`
	Latitude       *float64          `json:"latitude"`
	Longitude      *float64          `json:"longitude"`
	Code           *string           `json:"code"`
	AdditionalData map[string]string `json:"additional_data"`
}

type cargoDTO struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`

	Weight float64  `json:"weight"`
	Volume *float64 `json:"volume,omitempty"`
	Length *float64 `json:"length,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`

	LoadingPoint        string   `json:"loading_point"`
	UnloadingPoint      string   `json:"unloading_point"`
	LoadingLocationID   *uint64  `json:"loading_location_id,omitempty"`
	UnloadingLocationID *uint64  `json:"unloading_location_id,omitempty"`
	WaypointLocationIDs []uint64 `json:"waypoint_location_ids,omitempty"`

	LoadingDate time.Time `json:"loading_date"`
	IsConstant  bool      `json:"is_constant"`
	IsReady     bool      `json:"is_ready"`

	VehicleType string `json:"vehicle_type"`
	LoadingType string `json:"loading_type"`

	PaymentMethod  string            `json:"payment_method"`
	Price          *float64          `json:"price,omitempty"`
	PaymentDetails map[string]string `json:"payment_details,omitempty"`

	OwnerID      *string `json:"owner_id,omitempty"`
	AssignedToID *string `json:"assigned_to_id,omitempty"`

	SourceType string  `json:"source_type"`
	SourceID   *string `json:"source_id,omitempty"`

	ApprovedByID  *string    `json:"approved_by_id,omitempty"`
	ApprovalDate  *time.Time `json:"approval_date,omitempty"`
	ApprovalNotes *string    `json:"approval_notes,omitempty"`

	ViewsCount uint64    `json:"views_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toCargoDTO(c *models.Cargo) cargoDTO {
	return cargoDTO{
		ID:                  c.ID,
		Title:               c.Title,
		Description:         c.Description,
		Status:              string(c.Status),
		Weight:              c.Weight,
		Volume:              c.Volume,
		Length:              c.Length,
		Width:               c.Width,
		Height:              c.Height,
		LoadingPoint:        c.LoadingPoint,
		UnloadingPoint:      c.UnloadingPoint,
		LoadingLocationID:   c.LoadingLocationID,
		UnloadingLocationID: c.UnloadingLocationID,
		WaypointLocationIDs: c.WaypointLocationIDs,
		LoadingDate:         c.LoadingDate,
		IsConstant:          c.IsConstant,
		IsReady:             c.IsReady,
		VehicleType:         string(c.VehicleType),
		LoadingType:         string(c.LoadingType),
		PaymentMethod:       string(c.PaymentMethod),
		Price:               c.Price,
		PaymentDetails:      c.PaymentDetails,
		OwnerID:             c.OwnerID,
		AssignedToID:        c.AssignedToID,
		SourceType:          string(c.SourceType),
		SourceID:            c.SourceID,
		ApprovedByID:        c.ApprovedByID,
		ApprovalDate:        c.ApprovalDate,
		ApprovalNotes:       c.ApprovalNotes,
		ViewsCount:          c.ViewsCount,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func toCargoDTOs(cs []*models.Cargo) []cargoDTO {
	out := make([]cargoDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCargoDTO(c))
	}
	return out
}

type cargoCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	Weight float64  `json:"weight"`
	Volume *float64 `json:"volume"`
	Length *float64 `json:"length"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`

	LoadingPoint        string   `json:"loading_point"`
	UnloadingPoint      string   `json:"unloading_point"`
	LoadingLocationID   *uint64  `json:"loading_location_id"`
	UnloadingLocationID *uint64  `json:"unloading_location_id"`
	WaypointLocationIDs []uint64 `json:"waypoint_location_ids"`

	LoadingDate time.Time `json:"loading_date"`
	IsConstant  bool      `json:"is_constant"`
	IsReady     bool      `json:"is_ready"`

	VehicleType string `json:"vehicle_type"`
	LoadingType string `json:"loading_type"`

	PaymentMethod  string            `json:"payment_method"`
	Price          *float64          `json:"price"`
	PaymentDetails map[string]string `json:"payment_details"`
}

func (r cargoCreateRequest) toInput() models.CargoCreateInput {
	return models.CargoCreateInput{
		Title:               r.Title,
		Description:         r.Description,
		Weight:              r.Weight,
		Volume:              r.Volume,
		Length:              r.Length,
		Width:               r.Width,
		Height:              r.Height,
		LoadingPoint:        r.LoadingPoint,
		UnloadingPoint:      r.UnloadingPoint,
		LoadingLocationID:   r.LoadingLocationID,
		UnloadingLocationID: r.UnloadingLocationID,
		WaypointLocationIDs: r.WaypointLocationIDs,
		LoadingDate:         r.LoadingDate,
		IsConstant:          r.IsConstant,
		IsReady:             r.IsReady,
		VehicleType:         models.BodyType(r.VehicleType),
		LoadingType:         models.LoadingType(r.LoadingType),
		PaymentMethod:       models.PaymentMethod(r.PaymentMethod),
		Price:               r.Price,
		PaymentDetails:      r.PaymentDetails,
	}
}

type statusEntryDTO struct {
	Status      string    `json:"status"`
	ChangedByID *string   `json:"changed_by_id,omitempty"`
	Comment     *string   `json:"comment,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

func toStatusEntryDTOs(es []models.CargoStatusEntry) []statusEntryDTO {
	out := make([]statusEntryDTO, 0, len(es))
	for _, e := range es {
		out = append(out, statusEntryDTO{
			Status:      string(e.Status),
			ChangedByID: e.ChangedByID,
			Comment:     e.Comment,
			ChangedAt:   e.ChangedAt,
		})
	}
	return out
}

type requestDTO struct {
	ID        uint64  `json:"id"`
	CarrierID string  `json:"carrier_id"`
	VehicleID *uint64 `json:"vehicle_id,omitempty"`

	LoadingPoint        string  `json:"loading_point"`
	UnloadingPoint      string  `json:"unloading_point"`
	LoadingLocationID   *uint64 `json:"loading_location_id,omitempty"`
	UnloadingLocationID *uint64 `json:"unloading_location_id,omitempty"`

	ReadyDate    time.Time `json:"ready_date"`
	VehicleCount int       `json:"vehicle_count"`

	PriceExpectation *float64 `json:"price_expectation,omitempty"`
	PaymentTerms     *string  `json:"payment_terms,omitempty"`
	Notes            *string  `json:"notes,omitempty"`

	Status string `json:"status"`

	AssignedCargoID *uint64    `json:"assigned_cargo_id,omitempty"`
	AssignedByID    *string    `json:"assigned_by_id,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRequestDTO(r *models.CarrierRequest) requestDTO {
	return requestDTO{
		ID:                  r.ID,
		CarrierID:           r.CarrierID,
		VehicleID:           r.VehicleID,
		LoadingPoint:        r.LoadingPoint,
		UnloadingPoint:      r.UnloadingPoint,
		LoadingLocationID:   r.LoadingLocationID,
		UnloadingLocationID: r.UnloadingLocationID,
		ReadyDate:           r.ReadyDate,
		VehicleCount:        r.VehicleCount,
		PriceExpectation:    r.PriceExpectation,
		PaymentTerms:        r.PaymentTerms,
		Notes:               r.Notes,
		Status:              string(r.Status),
		AssignedCargoID:     r.AssignedCargoID,
		AssignedByID:        r.AssignedByID,
		AssignedAt:          r.AssignedAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func toRequestDTOs(rs []*models.CarrierRequest) []requestDTO {
	out := make([]requestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestDTO(r))
	}
	return out
}

type requestCreateRequest struct {
	VehicleID *uint64 `json:"vehicle_id"`

	LoadingPoint        string  `json:"loading_point"`
	UnloadingPoint      string  `json:"unloading_point"`
	LoadingLocationID   *uint64 `json:"loading_location_id"`
	UnloadingLocationID *uint64 `json:"unloading_location_id"`

	ReadyDate    time.Time `json:"ready_date"`
	VehicleCount int       `json:"vehicle_count"`

	PriceExpectation *float64 `json:"price_expectation"`
	PaymentTerms     *string  `json:"payment_terms"`
	Notes            *string  `json:"notes"`
}

func (r requestCreateRequest) toInput() models.CarrierRequestCreateInput {
	return models.CarrierRequestCreateInput{
		VehicleID:           r.VehicleID,
		LoadingPoint:        r.LoadingPoint,
		UnloadingPoint:      r.UnloadingPoint,
		LoadingLocationID:   r.LoadingLocationID,
		UnloadingLocationID: r.UnloadingLocationID,
		ReadyDate:           r.ReadyDate,
		VehicleCount:        r.VehicleCount,
		PriceExpectation:    r.PriceExpectation,
		PaymentTerms:        r.PaymentTerms,
		Notes:               r.Notes,
	}
}

type assignmentDTO struct {
	Cargo   cargoDTO   `json:"cargo"`
	Request requestDTO `json:"request"`
}
