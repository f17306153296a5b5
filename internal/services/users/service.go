package users

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

var (
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation")
)

type Repository interface {
	CreateOrGetUser(ctx context.Context, in models.UserCreateInput) (*models.User, error)
	GetUser(ctx context.Context, telegramID string) (*models.User, error)
	CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error)
	GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error)
	ListVehiclesByOwner(ctx context.Context, ownerID string) ([]*models.Vehicle, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register — идемпотентная регистрация: повторный вызов с тем же
// Telegram ID обновляет имя и возвращает существующего пользователя.
func (s *Service) Register(ctx context.Context, in models.UserCreateInput) (*models.User, error) {
	if strings.TrimSpace(in.TelegramID) == "" {
		return nil, errors.Wrap(ErrValidation, "telegram id is required")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, errors.Wrap(ErrValidation, "first name is required")
	}
	if !validRole(in.Role) {
		return nil, errors.Wrap(ErrValidation, "unknown role")
	}
	return s.repo.CreateOrGetUser(ctx, in)
}

func (s *Service) Get(ctx context.Context, telegramID string) (*models.User, error) {
	return s.repo.GetUser(ctx, telegramID)
}

// AddVehicle регистрирует машину. Машины есть только у перевозчиков.
func (s *Service) AddVehicle(ctx context.Context, actor models.Actor, in models.VehicleCreateInput) (*models.Vehicle, error) {
	if actor.Role != models.RoleCarrier && actor.Role != models.RoleTransportCompany {
		return nil, ErrForbidden
	}
	in.OwnerID = actor.ID

	if !in.BodyType.Valid() {
		return nil, errors.Wrap(ErrValidation, "unknown body type")
	}
	if !in.LoadingType.Valid() {
		return nil, errors.Wrap(ErrValidation, "unknown loading type")
	}
	if in.CapacityTons <= 0 {
		return nil, errors.Wrap(ErrValidation, "capacity must be positive")
	}
	if strings.TrimSpace(in.RegistrationNumber) == "" {
		return nil, errors.Wrap(ErrValidation, "registration number is required")
	}
	return s.repo.CreateVehicle(ctx, in)
}

func (s *Service) MyVehicles(ctx context.Context, actor models.Actor) ([]*models.Vehicle, error) {
	return s.repo.ListVehiclesByOwner(ctx, actor.ID)
}

func (s *Service) Vehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	return s.repo.GetVehicle(ctx, id)
}

func validRole(r models.UserRole) bool {
	switch r {
	case models.RoleStudent, models.RoleCarrier, models.RoleCargoOwner,
		models.RoleLogisticsCompany, models.RoleTransportCompany,
		models.RoleLogitTrans, models.RoleManager:
		return true
	}
	return false
}
