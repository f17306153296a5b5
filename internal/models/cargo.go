package models

import "time"

type CargoStatus string

const (
	CargoDraft           CargoStatus = "draft"
	CargoPendingApproval CargoStatus = "pending_approval"
	CargoManagerApproved CargoStatus = "manager_approved"
	CargoPending         CargoStatus = "pending"
	CargoAssigned        CargoStatus = "assigned"
	CargoInProgress      CargoStatus = "in_progress"
	CargoCompleted       CargoStatus = "completed"
	CargoCancelled       CargoStatus = "cancelled"
	CargoRejected        CargoStatus = "rejected"
	CargoExpired         CargoStatus = "expired"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentAdvance  PaymentMethod = "advance"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentAdvance:
		return true
	}
	return false
}

type SourceType string

const (
	SourceTelegram SourceType = "telegram"
	SourceAPI      SourceType = "api"
	SourceManual   SourceType = "manual"
	SourceWebsite  SourceType = "website"
)

// Cargo — груз, центральная сущность маркетплейса.
// Все числовые поля (вес, габариты, цена) лежат в NUMERIC(10,2) в базе;
// объём пересчитывается из габаритов на стороне Postgres, так что
// повторное сохранение не даёт дрейфа округления.
type Cargo struct {
	ID          uint64
	Title       string
	Description string
	Status      CargoStatus

	Weight float64
	Volume *float64
	Length *float64
	Width  *float64
	Height *float64

	LoadingPoint       string
	UnloadingPoint     string
	LoadingLocationID  *uint64
	UnloadingLocationID *uint64
	WaypointLocationIDs []uint64

	LoadingDate time.Time
	IsConstant  bool
	IsReady     bool

	VehicleType BodyType
	LoadingType LoadingType

	PaymentMethod  PaymentMethod
	Price          *float64
	PaymentDetails map[string]string

	OwnerID      *string
	AssignedToID *string
	ManagedByID  *string

	SourceType SourceType
	SourceID   *string

	ApprovedByID  *string
	ApprovalDate  *time.Time
	ApprovalNotes *string

	ViewsCount uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CargoCreateInput struct {
	Title       string
	Description string

	Weight float64
	Volume *float64
	Length *float64
	Width  *float64
	Height *float64

	LoadingPoint        string
	UnloadingPoint      string
	LoadingLocationID   *uint64
	UnloadingLocationID *uint64
	WaypointLocationIDs []uint64

	LoadingDate time.Time
	IsConstant  bool
	IsReady     bool

	VehicleType BodyType
	LoadingType LoadingType

	PaymentMethod  PaymentMethod
	Price          *float64
	PaymentDetails map[string]string

	SourceType SourceType
	SourceID   *string
}

// InitialCargoStatus returns the status a freshly created cargo gets for
// the creator's role: owner submissions go through manager review,
// logistics companies publish straight to the pool, manager submissions
// are auto-approved.
func InitialCargoStatus(role UserRole) CargoStatus {
	switch role {
	case RoleCargoOwner:
		return CargoPendingApproval
	case RoleLogisticsCompany:
		return CargoPending
	case RoleManager:
		return CargoManagerApproved
	default:
		return CargoDraft
	}
}

// CargoStatusEntry is one row of the cargo status history.
type CargoStatusEntry struct {
	ID          uint64
	CargoID     uint64
	Status      CargoStatus
	ChangedByID *string
	Comment     *string
	ChangedAt   time.Time
}
