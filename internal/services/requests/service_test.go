package requests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

type fakeRepo struct {
	createdIn models.CarrierRequestCreateInput

	requests map[uint64]*models.CarrierRequest
	vehicles map[uint64]*models.Vehicle

	reqFilter   models.RequestFilter
	cargoFilter models.CargoFilter
	cargosOut   []*models.Cargo

	updFrom, updTo models.RequestStatus
}

func (f *fakeRepo) CreateRequest(ctx context.Context, in models.CarrierRequestCreateInput) (*models.CarrierRequest, error) {
	f.createdIn = in
	return &models.CarrierRequest{ID: 1, CarrierID: in.CarrierID, Status: models.RequestPending}, nil
}

func (f *fakeRepo) GetRequest(ctx context.Context, id uint64) (*models.CarrierRequest, error) {
	if r, ok := f.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, pgmarket.ErrNotFound
}

func (f *fakeRepo) SearchRequests(ctx context.Context, flt models.RequestFilter) ([]*models.CarrierRequest, error) {
	f.reqFilter = flt
	return nil, nil
}

func (f *fakeRepo) UpdateRequestStatus(ctx context.Context, id uint64, from, to models.RequestStatus) (*models.CarrierRequest, error) {
	f.updFrom, f.updTo = from, to
	r, ok := f.requests[id]
	if !ok {
		return nil, pgmarket.ErrNotFound
	}
	if r.Status != from {
		return nil, pgmarket.ErrConflict
	}
	r.Status = to
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	if v, ok := f.vehicles[id]; ok {
		return v, nil
	}
	return nil, pgmarket.ErrNotFound
}

func (f *fakeRepo) SearchCargos(ctx context.Context, flt models.CargoFilter) ([]*models.Cargo, error) {
	f.cargoFilter = flt
	return f.cargosOut, nil
}

type fakeLocations struct{}

func (fakeLocations) ValidateRoute(ctx context.Context, l, u *uint64, w []uint64) error { return nil }
func (fakeLocations) DescendantIDs(ctx context.Context, id uint64) ([]uint64, error) {
	return []uint64{id, id * 10}, nil
}

func ptr[T any](v T) *T { return &v }

func validInput() models.CarrierRequestCreateInput {
	return models.CarrierRequestCreateInput{
		LoadingPoint:   "Казань",
		UnloadingPoint: "Самара",
		ReadyDate:      time.Now().AddDate(0, 0, 1),
		VehicleCount:   1,
	}
}

func TestService_Create_RoleAndOwnership(t *testing.T) {
	r := &fakeRepo{vehicles: map[uint64]*models.Vehicle{
		10: {ID: 10, OwnerID: "c1"},
	}}
	s := New(r, fakeLocations{})
	ctx := context.Background()

	_, err := s.Create(ctx, models.Actor{ID: "s1", Role: models.RoleStudent}, validInput())
	require.ErrorIs(t, err, ErrForbidden)

	// чужая машина
	in := validInput()
	in.VehicleID = ptr(uint64(10))
	_, err = s.Create(ctx, models.Actor{ID: "c2", Role: models.RoleCarrier}, in)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := s.Create(ctx, models.Actor{ID: "c1", Role: models.RoleCarrier}, in)
	require.NoError(t, err)
	// carrier_id всегда от актора, что бы ни пришло в теле
	require.Equal(t, "c1", r.createdIn.CarrierID)
	require.Equal(t, models.RequestPending, got.Status)
}

func TestService_Create_Validation(t *testing.T) {
	s := New(&fakeRepo{}, fakeLocations{})
	actor := models.Actor{ID: "c1", Role: models.RoleCarrier}

	in := validInput()
	in.LoadingPoint = ""
	_, err := s.Create(context.Background(), actor, in)
	require.ErrorIs(t, err, ErrValidation)

	in = validInput()
	in.VehicleCount = 0
	_, err = s.Create(context.Background(), actor, in)
	require.ErrorIs(t, err, ErrValidation)

	in = validInput()
	in.PriceExpectation = ptr(-5.0)
	_, err = s.Create(context.Background(), actor, in)
	require.ErrorIs(t, err, ErrValidation)

	// дата готовности в прошлом
	in = validInput()
	in.ReadyDate = time.Now().AddDate(0, 0, -2)
	_, err = s.Create(context.Background(), actor, in)
	require.ErrorIs(t, err, ErrValidation)

	// сегодняшняя дата допустима
	in = validInput()
	in.ReadyDate = time.Now()
	_, err = s.Create(context.Background(), actor, in)
	require.NoError(t, err)
}

func TestService_UpdateStatus(t *testing.T) {
	r := &fakeRepo{requests: map[uint64]*models.CarrierRequest{
		1: {ID: 1, CarrierID: "c1", Status: models.RequestPending},
	}}
	s := New(r, fakeLocations{})
	ctx := context.Background()

	// чужая заявка
	_, err := s.Cancel(ctx, models.Actor{ID: "c2", Role: models.RoleCarrier}, 1)
	require.ErrorIs(t, err, ErrForbidden)

	// назначение через общий endpoint запрещено
	_, err = s.UpdateStatus(ctx, models.Actor{ID: "c1", Role: models.RoleCarrier}, 1, models.RequestAssigned)
	require.ErrorIs(t, err, ErrValidation)

	got, err := s.Cancel(ctx, models.Actor{ID: "c1", Role: models.RoleCarrier}, 1)
	require.NoError(t, err)
	require.Equal(t, models.RequestCancelled, got.Status)

	// назад в пул
	got, err = s.Reopen(ctx, models.Actor{ID: "c1", Role: models.RoleCarrier}, 1)
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, got.Status)

	// несуществующий переход
	var invalid *models.InvalidTransitionError
	_, err = s.Complete(ctx, models.Actor{ID: "c1", Role: models.RoleCarrier}, 1)
	require.ErrorAs(t, err, &invalid)

	// тот же статус — no-op
	got, err = s.Reopen(ctx, models.Actor{ID: "c1", Role: models.RoleCarrier}, 1)
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, got.Status)
}

func TestService_MatchCargos(t *testing.T) {
	r := &fakeRepo{
		requests: map[uint64]*models.CarrierRequest{
			1: {
				ID: 1, CarrierID: "c1", Status: models.RequestPending,
				LoadingLocationID:   ptr(uint64(3)),
				UnloadingLocationID: ptr(uint64(4)),
				ReadyDate:           time.Now(),
			},
		},
		cargosOut: []*models.Cargo{{ID: 5}},
	}
	s := New(r, fakeLocations{})

	got, err := s.MatchCargos(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.ElementsMatch(t, []models.CargoStatus{models.CargoPending, models.CargoManagerApproved}, r.cargoFilter.Statuses)
	require.ElementsMatch(t, []uint64{3, 30}, r.cargoFilter.LoadingLocationIDs)
	require.NotNil(t, r.cargoFilter.LoadingDateFrom)
}

func TestService_MatchCargos_FallsBackToPointText(t *testing.T) {
	r := &fakeRepo{
		requests: map[uint64]*models.CarrierRequest{
			1: {
				ID: 1, CarrierID: "c1", Status: models.RequestPending,
				LoadingPoint: "Казань", UnloadingPoint: " Самара ",
				ReadyDate: time.Now(),
			},
		},
	}
	s := New(r, fakeLocations{})

	_, err := s.MatchCargos(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, r.cargoFilter.LoadingLocationIDs)
	require.NotNil(t, r.cargoFilter.LoadingPointQuery)
	require.Equal(t, "Казань", *r.cargoFilter.LoadingPointQuery)
	require.NotNil(t, r.cargoFilter.UnloadingPointQuery)
	require.Equal(t, "Самара", *r.cargoFilter.UnloadingPointQuery)
}

func TestService_My(t *testing.T) {
	r := &fakeRepo{}
	s := New(r, fakeLocations{})

	_, err := s.My(context.Background(), models.Actor{ID: "c1", Role: models.RoleCarrier}, 10, 0)
	require.NoError(t, err)
	require.NotNil(t, r.reqFilter.CarrierID)
	require.Equal(t, "c1", *r.reqFilter.CarrierID)
}
