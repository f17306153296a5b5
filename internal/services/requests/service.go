package requests

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

var (
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation")
)

type Repository interface {
	CreateRequest(ctx context.Context, in models.CarrierRequestCreateInput) (*models.CarrierRequest, error)
	GetRequest(ctx context.Context, id uint64) (*models.CarrierRequest, error)
	SearchRequests(ctx context.Context, f models.RequestFilter) ([]*models.CarrierRequest, error)
	UpdateRequestStatus(ctx context.Context, id uint64, from, to models.RequestStatus) (*models.CarrierRequest, error)
	GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error)
	SearchCargos(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error)
}

type RouteValidator interface {
	ValidateRoute(ctx context.Context, loadingID, unloadingID *uint64, waypointIDs []uint64) error
	DescendantIDs(ctx context.Context, id uint64) ([]uint64, error)
}

type Service struct {
	repo      Repository
	locations RouteValidator
}

func New(repo Repository, locations RouteValidator) *Service {
	return &Service{repo: repo, locations: locations}
}

// Create публикует заявку перевозчика. Машину можно указывать только
// свою, и только роль carrier (и транспортная компания) подаёт заявки.
func (s *Service) Create(ctx context.Context, actor models.Actor, in models.CarrierRequestCreateInput) (*models.CarrierRequest, error) {
	if actor.Role != models.RoleCarrier && actor.Role != models.RoleTransportCompany {
		return nil, ErrForbidden
	}
	in.CarrierID = actor.ID

	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if s.locations != nil {
		if err := s.locations.ValidateRoute(ctx, in.LoadingLocationID, in.UnloadingLocationID, nil); err != nil {
			return nil, errors.Wrap(ErrValidation, err.Error())
		}
	}
	if in.VehicleID != nil {
		v, err := s.repo.GetVehicle(ctx, *in.VehicleID)
		if err != nil {
			return nil, err
		}
		if v.OwnerID != actor.ID {
			return nil, ErrForbidden
		}
	}

	return s.repo.CreateRequest(ctx, in)
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.CarrierRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// Search разворачивает локации в территорию, как и у грузов.
func (s *Service) Search(ctx context.Context, f models.RequestFilter) ([]*models.CarrierRequest, error) {
	if s.locations != nil {
		for _, set := range []*[]uint64{&f.LoadingLocationIDs, &f.UnloadingLocationIDs} {
			if len(*set) == 0 {
				continue
			}
			var expanded []uint64
			for _, id := range *set {
				ids, err := s.locations.DescendantIDs(ctx, id)
				if err != nil {
					return nil, err
				}
				expanded = append(expanded, ids...)
			}
			*set = expanded
		}
	}
	return s.repo.SearchRequests(ctx, f)
}

// My — заявки самого перевозчика.
func (s *Service) My(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.CarrierRequest, error) {
	return s.repo.SearchRequests(ctx, models.RequestFilter{
		CarrierID: &actor.ID,
		Limit:     limit,
		Offset:    offset,
	})
}

// UpdateStatus проводит заявку по таблице переходов. Менять заявку
// может только её владелец, менеджер действует как оператор.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id uint64, to models.RequestStatus) (*models.CarrierRequest, error) {
	r, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == to {
		return r, nil
	}

	if !models.RequestTransitionExists(r.Status, to) {
		return nil, &models.InvalidTransitionError{Entity: "carrier request", Current: string(r.Status), Requested: string(to)}
	}
	if actor.Role != models.RoleManager {
		if !models.RequestTransitionAllowed(r.Status, to, actor.Role) {
			return nil, ErrForbidden
		}
		if r.CarrierID != actor.ID {
			return nil, ErrForbidden
		}
	}
	if to == models.RequestAssigned || to == models.RequestAccepted || to == models.RequestRejected {
		// связка с грузом меняется только через назначение
		return nil, errors.Wrap(ErrValidation, "use assignment endpoints")
	}

	return s.repo.UpdateRequestStatus(ctx, id, r.Status, to)
}

// Cancel и Complete — основные действия перевозчика над своей заявкой.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error) {
	return s.UpdateStatus(ctx, actor, id, models.RequestCancelled)
}

func (s *Service) Complete(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error) {
	return s.UpdateStatus(ctx, actor, id, models.RequestCompleted)
}

// Reopen возвращает отклонённую или отменённую заявку в пул.
func (s *Service) Reopen(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error) {
	return s.UpdateStatus(ctx, actor, id, models.RequestPending)
}

// MatchCargos подбирает свободные грузы под заявку: территория
// совпадает, погрузка не раньше готовности машины.
func (s *Service) MatchCargos(ctx context.Context, requestID uint64) ([]*models.Cargo, error) {
	r, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	f := models.CargoFilter{
		Statuses:        []models.CargoStatus{models.CargoPending, models.CargoManagerApproved},
		LoadingDateFrom: &r.ReadyDate,
	}
	if r.LoadingLocationID != nil {
		ids, err := s.locations.DescendantIDs(ctx, *r.LoadingLocationID)
		if err != nil {
			return nil, err
		}
		f.LoadingLocationIDs = ids
	} else if q := strings.TrimSpace(r.LoadingPoint); q != "" {
		// без привязки к справочнику сопоставляем по тексту пункта
		f.LoadingPointQuery = &q
	}
	if r.UnloadingLocationID != nil {
		ids, err := s.locations.DescendantIDs(ctx, *r.UnloadingLocationID)
		if err != nil {
			return nil, err
		}
		f.UnloadingLocationIDs = ids
	} else if q := strings.TrimSpace(r.UnloadingPoint); q != "" {
		f.UnloadingPointQuery = &q
	}
	return s.repo.SearchCargos(ctx, f)
}

func validateCreate(in models.CarrierRequestCreateInput) error {
	if strings.TrimSpace(in.LoadingPoint) == "" || strings.TrimSpace(in.UnloadingPoint) == "" {
		return errors.Wrap(ErrValidation, "loading and unloading points are required")
	}
	if in.ReadyDate.IsZero() {
		return errors.Wrap(ErrValidation, "ready date is required")
	}
	if in.ReadyDate.Before(time.Now().Truncate(24 * time.Hour)) {
		return errors.Wrap(ErrValidation, "ready date is in the past")
	}
	if in.VehicleCount <= 0 {
		return errors.Wrap(ErrValidation, "vehicle count must be positive")
	}
	if in.PriceExpectation != nil && *in.PriceExpectation < 0 {
		return errors.Wrap(ErrValidation, "price expectation must not be negative")
	}
	return nil
}
