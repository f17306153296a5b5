package cargos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

var (
	// ErrForbidden — роль или владение не дают права на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation помечает ошибки входных данных, API отдаёт их как 400.
	ErrValidation = errors.New("validation")
)

type Repository interface {
	CreateCargo(ctx context.Context, in models.CargoCreateInput, status models.CargoStatus, ownerID *string, approvedBy *string) (*models.Cargo, error)
	GetCargo(ctx context.Context, id uint64) (*models.Cargo, error)
	UpdateCargoStatus(ctx context.Context, id uint64, upd pgmarket.StatusUpdate) (*models.Cargo, error)
	CargoStatusHistory(ctx context.Context, cargoID uint64) ([]models.CargoStatusEntry, error)
	IncrementCargoViews(ctx context.Context, id uint64) error
	SearchCargos(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error)
	CargoStatistics(ctx context.Context) (*models.CargoStats, error)
	SearchRequests(ctx context.Context, f models.RequestFilter) ([]*models.CarrierRequest, error)
	GetRequest(ctx context.Context, id uint64) (*models.CarrierRequest, error)
	AssignCargoToRequest(ctx context.Context, cargoID, requestID uint64, assignedBy string) (*models.Cargo, *models.CarrierRequest, error)
	DecideAssignment(ctx context.Context, requestID uint64, accept bool, decidedBy string) (*models.Cargo, *models.CarrierRequest, error)
}

// RouteValidator и LocationExpander закрывает сервис локаций.
type RouteValidator interface {
	ValidateRoute(ctx context.Context, loadingID, unloadingID *uint64, waypointIDs []uint64) error
	DescendantIDs(ctx context.Context, id uint64) ([]uint64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo      Repository
	locations RouteValidator
	events    *eventPublisher
}

func New(repo Repository, locations RouteValidator, producer Producer) *Service {
	return &Service{
		repo:      repo,
		locations: locations,
		events:    newEventPublisher(producer),
	}
}

// Create заводит груз со стартовым статусом по роли автора: владелец
// груза идёт через модерацию, логистическая компания публикует сразу,
// менеджер получает автоодобрение.
func (s *Service) Create(ctx context.Context, actor models.Actor, in models.CargoCreateInput) (*models.Cargo, error) {
	if err := ValidateCreateInput(in); err != nil {
		return nil, err
	}
	if s.locations != nil {
		if err := s.locations.ValidateRoute(ctx, in.LoadingLocationID, in.UnloadingLocationID, in.WaypointLocationIDs); err != nil {
			return nil, errors.Wrap(ErrValidation, err.Error())
		}
	}
	if in.SourceType == "" {
		in.SourceType = models.SourceTelegram
	}

	status := models.InitialCargoStatus(actor.Role)
	var approvedBy *string
	if actor.Role == models.RoleManager {
		approvedBy = &actor.ID
	}

	c, err := s.repo.CreateCargo(ctx, in, status, &actor.ID, approvedBy)
	if err != nil {
		return nil, err
	}
	s.events.cargoChanged(ctx, c, "", &actor.ID, nil)
	return c, nil
}

// Get отдаёт груз, попутно считая просмотр, если смотрит не автор.
func (s *Service) Get(ctx context.Context, actor models.Actor, id uint64) (*models.Cargo, error) {
	c, err := s.repo.GetCargo(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID == nil || *c.OwnerID != actor.ID {
		if err := s.repo.IncrementCargoViews(ctx, id); err == nil {
			c.ViewsCount++
		}
	}
	return c, nil
}

func (s *Service) History(ctx context.Context, id uint64) ([]models.CargoStatusEntry, error) {
	return s.repo.CargoStatusHistory(ctx, id)
}

// UpdateStatus проводит груз по таблице переходов. Поверх роли
// проверяется владение: владелец распоряжается только своими грузами,
// перевозчик только назначенными на него.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id uint64, to models.CargoStatus, comment *string) (*models.Cargo, error) {
	c, err := s.repo.GetCargo(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == to {
		return c, nil
	}

	if to == models.CargoAssigned {
		// назначение только через заявку перевозчика
		return nil, errors.Wrap(ErrValidation, "use assignment endpoint to assign a carrier")
	}

	if !models.CargoTransitionExists(c.Status, to) {
		return nil, &models.InvalidTransitionError{Entity: "cargo", Current: string(c.Status), Requested: string(to)}
	}
	if !models.CargoTransitionAllowed(c.Status, to, actor.Role) {
		return nil, ErrForbidden
	}
	if err := checkOwnership(c, actor); err != nil {
		return nil, err
	}

	upd := pgmarket.StatusUpdate{
		From:        c.Status,
		To:          to,
		ChangedByID: &actor.ID,
		Comment:     comment,
	}
	switch to {
	case models.CargoManagerApproved:
		upd.ApprovedByID = &actor.ID
		upd.ApprovalNotes = comment
	case models.CargoRejected:
		upd.ApprovedByID = &actor.ID
		upd.ApprovalNotes = comment
	case models.CargoCancelled:
		if c.AssignedToID != nil {
			upd.ClearAssignee = true
		}
	}

	after, err := s.repo.UpdateCargoStatus(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.events.cargoChanged(ctx, after, c.Status, &actor.ID, comment)
	return after, nil
}

// Approve и Reject — решения модерации, только для менеджера.
func (s *Service) Approve(ctx context.Context, actor models.Actor, id uint64, notes *string) (*models.Cargo, error) {
	return s.UpdateStatus(ctx, actor, id, models.CargoManagerApproved, notes)
}

func (s *Service) Reject(ctx context.Context, actor models.Actor, id uint64, notes *string) (*models.Cargo, error) {
	return s.UpdateStatus(ctx, actor, id, models.CargoRejected, notes)
}

// Assign связывает груз с заявкой перевозчика. Право назначать у
// студента и менеджера, обе записи меняет одна транзакция хранилища.
func (s *Service) Assign(ctx context.Context, actor models.Actor, cargoID, requestID uint64) (*models.Cargo, *models.CarrierRequest, error) {
	if actor.Role != models.RoleStudent && actor.Role != models.RoleManager {
		return nil, nil, ErrForbidden
	}

	before, err := s.repo.GetCargo(ctx, cargoID)
	if err != nil {
		return nil, nil, err
	}

	c, r, err := s.repo.AssignCargoToRequest(ctx, cargoID, requestID, actor.ID)
	if err != nil {
		return nil, nil, err
	}
	s.events.cargoChanged(ctx, c, before.Status, &actor.ID, nil)
	s.events.requestChanged(ctx, r, models.RequestPending, c)
	return c, r, nil
}

// Decide — ответ перевозчика на назначение. Только владелец заявки.
func (s *Service) Decide(ctx context.Context, actor models.Actor, requestID uint64, accept bool) (*models.Cargo, *models.CarrierRequest, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.CarrierID != actor.ID {
		return nil, nil, ErrForbidden
	}

	c, r, err := s.repo.DecideAssignment(ctx, requestID, accept, actor.ID)
	if err != nil {
		return nil, nil, err
	}
	// При отказе хранилище уже сняло назначившего с заявки, а событие
	// должно дойти именно до него: подставляем значение, прочитанное до
	// решения.
	ev := *r
	if ev.AssignedByID == nil {
		ev.AssignedByID = req.AssignedByID
	}
	s.events.requestChanged(ctx, &ev, models.RequestAssigned, c)
	s.events.cargoChanged(ctx, c, models.CargoAssigned, &actor.ID, nil)
	return c, r, nil
}

// Search разворачивает фильтры по локациям в территорию (узел плюс
// потомки) и делегирует выборку хранилищу.
func (s *Service) Search(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error) {
	if err := s.expandLocations(ctx, &f.LoadingLocationIDs, &f.UnloadingLocationIDs); err != nil {
		return nil, err
	}
	return s.repo.SearchCargos(ctx, f)
}

// MatchRequests подбирает свободные заявки перевозчиков под груз:
// территория погрузки и выгрузки, готовность не позже даты погрузки.
func (s *Service) MatchRequests(ctx context.Context, cargoID uint64) ([]*models.CarrierRequest, error) {
	c, err := s.repo.GetCargo(ctx, cargoID)
	if err != nil {
		return nil, err
	}

	f := models.RequestFilter{
		Statuses:    []models.RequestStatus{models.RequestPending},
		ReadyDateTo: &c.LoadingDate,
	}
	if c.LoadingLocationID != nil {
		ids, err := s.locations.DescendantIDs(ctx, *c.LoadingLocationID)
		if err != nil {
			return nil, err
		}
		f.LoadingLocationIDs = ids
	} else if q := strings.TrimSpace(c.LoadingPoint); q != "" {
		// без привязки к справочнику сопоставляем по тексту пункта
		f.LoadingPointQuery = &q
	}
	if c.UnloadingLocationID != nil {
		ids, err := s.locations.DescendantIDs(ctx, *c.UnloadingLocationID)
		if err != nil {
			return nil, err
		}
		f.UnloadingLocationIDs = ids
	} else if q := strings.TrimSpace(c.UnloadingPoint); q != "" {
		f.UnloadingPointQuery = &q
	}
	return s.repo.SearchRequests(ctx, f)
}

func (s *Service) Statistics(ctx context.Context, actor models.Actor) (*models.CargoStats, error) {
	switch actor.Role {
	case models.RoleManager, models.RoleStudent, models.RoleLogitTrans:
	default:
		return nil, ErrForbidden
	}
	return s.repo.CargoStatistics(ctx)
}

func (s *Service) expandLocations(ctx context.Context, sets ...*[]uint64) error {
	if s.locations == nil {
		return nil
	}
	for _, set := range sets {
		if len(*set) == 0 {
			continue
		}
		var expanded []uint64
		for _, id := range *set {
			ids, err := s.locations.DescendantIDs(ctx, id)
			if err != nil {
				return err
			}
			expanded = append(expanded, ids...)
		}
		*set = expanded
	}
	return nil
}

// checkOwnership дотягивает проверку "чей груз" поверх таблицы ролей.
func checkOwnership(c *models.Cargo, actor models.Actor) error {
	switch actor.Role {
	case models.RoleCarrier:
		if c.AssignedToID == nil || *c.AssignedToID != actor.ID {
			return ErrForbidden
		}
	case models.RoleCargoOwner, models.RoleLogisticsCompany:
		if c.OwnerID == nil || *c.OwnerID != actor.ID {
			return ErrForbidden
		}
	}
	// менеджер и студент действуют как операторы площадки
	return nil
}

// ValidateCreateInput проверяет поля нового груза. Используется и при
// ручном создании, и при пакетном приёме из внешних систем.
func ValidateCreateInput(in models.CargoCreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.Wrap(ErrValidation, "title is required")
	}
	if in.Weight <= 0 {
		return errors.Wrap(ErrValidation, "weight must be positive")
	}
	for _, d := range []*float64{in.Volume, in.Length, in.Width, in.Height, in.Price} {
		if d != nil && *d < 0 {
			return errors.Wrap(ErrValidation, "dimensions and price must not be negative")
		}
	}
	if strings.TrimSpace(in.LoadingPoint) == "" || strings.TrimSpace(in.UnloadingPoint) == "" {
		return errors.Wrap(ErrValidation, "loading and unloading points are required")
	}
	if in.LoadingDate.IsZero() {
		return errors.Wrap(ErrValidation, "loading date is required")
	}
	if !in.IsConstant && in.LoadingDate.Before(time.Now().Truncate(24*time.Hour)) {
		return errors.Wrap(ErrValidation, "loading date is in the past")
	}
	if !in.VehicleType.Valid() {
		return errors.Wrap(ErrValidation, "unknown vehicle type")
	}
	if !in.LoadingType.Valid() {
		return errors.Wrap(ErrValidation, "unknown loading type")
	}
	if !in.PaymentMethod.Valid() {
		return errors.Wrap(ErrValidation, "unknown payment method")
	}
	return nil
}
