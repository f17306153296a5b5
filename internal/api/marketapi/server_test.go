package marketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/services/cargos"
	"github.com/LogitTrans/cargolink/internal/services/ingest"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return raw
}

type fakeUsers struct {
	users      map[string]*models.User
	registered *models.UserCreateInput
}

func (f *fakeUsers) Register(_ context.Context, in models.UserCreateInput) (*models.User, error) {
	f.registered = &in
	return &models.User{TelegramID: in.TelegramID, FirstName: in.FirstName, Role: in.Role, IsActive: true}, nil
}

func (f *fakeUsers) Get(_ context.Context, telegramID string) (*models.User, error) {
	u, ok := f.users[telegramID]
	if !ok {
		return nil, pgmarket.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) AddVehicle(_ context.Context, actor models.Actor, in models.VehicleCreateInput) (*models.Vehicle, error) {
	return &models.Vehicle{ID: 7, OwnerID: actor.ID, BodyType: in.BodyType, LoadingType: in.LoadingType, CapacityTons: in.CapacityTons, RegistrationNumber: in.RegistrationNumber, IsActive: true}, nil
}

func (f *fakeUsers) MyVehicles(_ context.Context, actor models.Actor) ([]*models.Vehicle, error) {
	return []*models.Vehicle{{ID: 7, OwnerID: actor.ID}}, nil
}

func (f *fakeUsers) Vehicle(_ context.Context, id uint64) (*models.Vehicle, error) {
	if id != 7 {
		return nil, pgmarket.ErrNotFound
	}
	return &models.Vehicle{ID: 7, OwnerID: "200"}, nil
}

type fakeLocations struct{}

func (fakeLocations) Get(_ context.Context, id uint64) (*models.Location, error) {
	if id != 10 {
		return nil, pgmarket.ErrNotFound
	}
	return &models.Location{ID: 10, Name: "Казань", Level: models.LevelCity}, nil
}
func (fakeLocations) Hierarchy(context.Context, uint64) ([]models.HierarchyEntry, error) {
	return []models.HierarchyEntry{{ID: 1, Name: "Россия", Level: models.LevelCountry}}, nil
}
func (fakeLocations) Search(context.Context, string, *models.LocationLevel, *uint64, int) ([]models.LocationMatch, error) {
	return []models.LocationMatch{{ID: 10, Name: "Казань"}}, nil
}
func (fakeLocations) Nearby(context.Context, float64, float64, float64, models.LocationLevel) ([]models.LocationMatch, error) {
	return nil, nil
}
func (fakeLocations) NearbyLocation(context.Context, uint64, float64, models.LocationLevel) ([]models.LocationMatch, error) {
	return nil, nil
}
func (fakeLocations) Choices(context.Context, *uint64) ([]models.LocationChoice, error) {
	return nil, nil
}
func (fakeLocations) ValidatePath(_ context.Context, cityID, _, _ *uint64) (bool, error) {
	if cityID != nil && *cityID != 10 {
		return false, nil
	}
	return true, nil
}
func (fakeLocations) Import(_ context.Context, items []models.LocationImportInput) ([]*models.Location, error) {
	out := make([]*models.Location, 0, len(items))
	for i, it := range items {
		out = append(out, &models.Location{ID: uint64(i + 1), Name: it.Name, Level: it.Level})
	}
	return out, nil
}

type fakeCargos struct {
	lastFilter models.CargoFilter
	statusErr  error
}

func (f *fakeCargos) Create(_ context.Context, actor models.Actor, in models.CargoCreateInput) (*models.Cargo, error) {
	if in.Title == "" {
		return nil, errors.Wrap(cargos.ErrValidation, "title is required")
	}
	return &models.Cargo{ID: 1, Title: in.Title, Status: models.CargoPending, OwnerID: &actor.ID}, nil
}

func (f *fakeCargos) Get(_ context.Context, _ models.Actor, id uint64) (*models.Cargo, error) {
	if id != 1 {
		return nil, pgmarket.ErrNotFound
	}
	return &models.Cargo{ID: 1, Title: "Металлопрокат", Status: models.CargoPending}, nil
}

func (f *fakeCargos) History(context.Context, uint64) ([]models.CargoStatusEntry, error) {
	return []models.CargoStatusEntry{{Status: models.CargoPending}}, nil
}

func (f *fakeCargos) UpdateStatus(_ context.Context, _ models.Actor, id uint64, to models.CargoStatus, _ *string) (*models.Cargo, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &models.Cargo{ID: id, Status: to}, nil
}

func (f *fakeCargos) Approve(_ context.Context, actor models.Actor, id uint64, _ *string) (*models.Cargo, error) {
	if actor.Role != models.RoleManager {
		return nil, cargos.ErrForbidden
	}
	return &models.Cargo{ID: id, Status: models.CargoManagerApproved}, nil
}

func (f *fakeCargos) Reject(_ context.Context, _ models.Actor, id uint64, _ *string) (*models.Cargo, error) {
	return &models.Cargo{ID: id, Status: models.CargoRejected}, nil
}

func (f *fakeCargos) Assign(_ context.Context, _ models.Actor, cargoID, requestID uint64) (*models.Cargo, *models.CarrierRequest, error) {
	return &models.Cargo{ID: cargoID, Status: models.CargoAssigned},
		&models.CarrierRequest{ID: requestID, Status: models.RequestAssigned}, nil
}

func (f *fakeCargos) Decide(_ context.Context, _ models.Actor, requestID uint64, accept bool) (*models.Cargo, *models.CarrierRequest, error) {
	st := models.RequestRejected
	if accept {
		st = models.RequestAccepted
	}
	return &models.Cargo{ID: 1}, &models.CarrierRequest{ID: requestID, Status: st}, nil
}

func (f *fakeCargos) Search(_ context.Context, filter models.CargoFilter) ([]*models.Cargo, error) {
	f.lastFilter = filter
	return []*models.Cargo{{ID: 1, Title: "Металлопрокат"}}, nil
}

func (f *fakeCargos) MatchRequests(context.Context, uint64) ([]*models.CarrierRequest, error) {
	return nil, nil
}

func (f *fakeCargos) Statistics(_ context.Context, actor models.Actor) (*models.CargoStats, error) {
	if actor.Role == models.RoleCarrier {
		return nil, cargos.ErrForbidden
	}
	return &models.CargoStats{Total: 3}, nil
}

type fakeRequests struct{}

func (fakeRequests) Create(_ context.Context, actor models.Actor, in models.CarrierRequestCreateInput) (*models.CarrierRequest, error) {
	return &models.CarrierRequest{ID: 5, CarrierID: actor.ID, Status: models.RequestPending, ReadyDate: in.ReadyDate}, nil
}
func (fakeRequests) Get(_ context.Context, id uint64) (*models.CarrierRequest, error) {
	return &models.CarrierRequest{ID: id, Status: models.RequestPending}, nil
}
func (fakeRequests) Search(context.Context, models.RequestFilter) ([]*models.CarrierRequest, error) {
	return nil, nil
}
func (fakeRequests) My(_ context.Context, actor models.Actor, _, _ int) ([]*models.CarrierRequest, error) {
	return []*models.CarrierRequest{{ID: 5, CarrierID: actor.ID}}, nil
}
func (fakeRequests) UpdateStatus(_ context.Context, _ models.Actor, id uint64, to models.RequestStatus) (*models.CarrierRequest, error) {
	return &models.CarrierRequest{ID: id, Status: to}, nil
}
func (fakeRequests) Cancel(_ context.Context, _ models.Actor, id uint64) (*models.CarrierRequest, error) {
	return &models.CarrierRequest{ID: id, Status: models.RequestCancelled}, nil
}
func (fakeRequests) Complete(_ context.Context, _ models.Actor, id uint64) (*models.CarrierRequest, error) {
	return &models.CarrierRequest{ID: id, Status: models.RequestCompleted}, nil
}
func (fakeRequests) Reopen(_ context.Context, _ models.Actor, id uint64) (*models.CarrierRequest, error) {
	return &models.CarrierRequest{ID: id, Status: models.RequestPending}, nil
}
func (fakeRequests) MatchCargos(context.Context, uint64) ([]*models.Cargo, error) {
	return nil, nil
}

type fakeIngest struct {
	err error
	got Batch
}

func (f *fakeIngest) Ingest(_ context.Context, b Batch) (*ingest.BatchResult, error) {
	f.got = b
	if f.err != nil {
		return nil, f.err
	}
	res := &ingest.BatchResult{}
	for i := range b.Items {
		res.Accepted++
		res.Results = append(res.Results, ingest.ItemResult{Index: i, CargoID: uint64(i + 1)})
	}
	return res, nil
}

type testEnv struct {
	srv    *httptest.Server
	users  *fakeUsers
	cargos *fakeCargos
	ingest *fakeIngest
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users: &fakeUsers{users: map[string]*models.User{
			"100": {TelegramID: "100", FirstName: "Фёдор", Role: models.RoleManager, IsActive: true},
			"200": {TelegramID: "200", FirstName: "Пётр", Role: models.RoleCarrier, IsActive: true},
			"300": {TelegramID: "300", FirstName: "Ольга", Role: models.RoleCargoOwner, IsActive: false},
		}},
		cargos: &fakeCargos{},
		ingest: &fakeIngest{},
	}
	s := New(env.users, fakeLocations{}, env.cargos, fakeRequests{}, env.ingest, testSecret, nil)
	env.srv = httptest.NewServer(s.Router())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, sub string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, sub))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResp[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/users/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/v1/users/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/users/me", "999", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("inactive user", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/users/me", "300", nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("ok", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/users/me", "100", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		me := decodeResp[userDTO](t, resp)
		require.Equal(t, "100", me.TelegramID)
		require.Equal(t, "manager", me.Role)
	})
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	// Регистрация не требует существующего пользователя, только токен.
	resp := env.do(t, http.MethodPost, "/v1/users", "555", registerRequest{
		FirstName: "Иван",
		Role:      "carrier",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	u := decodeResp[userDTO](t, resp)
	require.Equal(t, "555", u.TelegramID)

	// Telegram ID берётся из подписи токена, не из тела.
	require.Equal(t, "555", env.users.registered.TelegramID)
}

func TestCargoEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("create", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/cargos", "100", cargoCreateRequest{
			Title: "Металлопрокат", Weight: 5,
			LoadingPoint: "Казань", UnloadingPoint: "Москва",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("create validation error", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/cargos", "100", cargoCreateRequest{})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get missing", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/cargos/77", "100", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/cargos/abc", "100", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid transition maps to conflict", func(t *testing.T) {
		env.cargos.statusErr = &models.InvalidTransitionError{Entity: "cargo", Current: "completed", Requested: "pending"}
		defer func() { env.cargos.statusErr = nil }()

		resp := env.do(t, http.MethodPost, "/v1/cargos/1/status", "100", cargoStatusRequest{Status: "pending"})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decodeResp[errorBody](t, resp)
		require.Contains(t, body.Error, "cannot transition")
	})

	t.Run("concurrent update maps to conflict", func(t *testing.T) {
		env.cargos.statusErr = pgmarket.ErrConflict
		defer func() { env.cargos.statusErr = nil }()

		resp := env.do(t, http.MethodPost, "/v1/cargos/1/status", "100", cargoStatusRequest{Status: "cancelled"})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("approve forbidden for carrier", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/cargos/1/approve", "200", approvalRequest{})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("assign", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/cargos/1/assign", "100", assignRequest{RequestID: 5})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decodeResp[assignmentDTO](t, resp)
		require.Equal(t, "assigned", out.Cargo.Status)
		require.Equal(t, "assigned", out.Request.Status)
	})

	t.Run("assign without request id", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/cargos/1/assign", "100", assignRequest{})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("search passes filter", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/cargos/?status=pending&status=assigned&min_weight=2&limit=10&loading_location_id=10", "100", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		f := env.cargos.lastFilter
		require.Equal(t, []models.CargoStatus{models.CargoPending, models.CargoAssigned}, f.Statuses)
		require.Equal(t, []uint64{10}, f.LoadingLocationIDs)
		require.NotNil(t, f.MinWeight)
		require.Equal(t, 2.0, *f.MinWeight)
		require.Equal(t, 10, f.Limit)
	})

	t.Run("stats forbidden for carrier", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/cargos/stats", "200", nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("stats for manager", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/cargos/stats", "100", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		stats := decodeResp[models.CargoStats](t, resp)
		require.Equal(t, uint64(3), stats.Total)
	})
}

func TestRequestEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("create", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/carrier-requests", "200", requestCreateRequest{
			LoadingPoint: "Казань", UnloadingPoint: "Москва",
			ReadyDate: time.Now().Add(24 * time.Hour), VehicleCount: 1,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		cr := decodeResp[requestDTO](t, resp)
		require.Equal(t, "200", cr.CarrierID)
	})

	t.Run("decision accept", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/carrier-requests/5/decision", "200", decisionRequest{Accept: true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decodeResp[assignmentDTO](t, resp)
		require.Equal(t, "accepted", out.Request.Status)
	})

	t.Run("my", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/carrier-requests/my", "200", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLocationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("get", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/locations/10", "100", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		loc := decodeResp[locationDTO](t, resp)
		require.Equal(t, "Казань", loc.Name)
	})

	t.Run("search requires query", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/locations/search", "100", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("nearby requires coordinates", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/locations/nearby?lat=55.8", "100", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("validate path", func(t *testing.T) {
		ten, eleven := uint64(10), uint64(11)

		resp := env.do(t, http.MethodPost, "/v1/locations/validate-path", "100", validatePathRequest{CityID: &ten})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeResp[map[string]bool](t, resp)
		require.True(t, body["valid"])

		resp = env.do(t, http.MethodPost, "/v1/locations/validate-path", "100", validatePathRequest{CityID: &eleven})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body = decodeResp[map[string]bool](t, resp)
		require.False(t, body["valid"])
	})

	t.Run("import forbidden for carrier", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/locations/import", "200", []locationImportItem{{Name: "Россия", Level: 1}})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("import by manager", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/locations/import", "100", []locationImportItem{{Name: "Россия", Level: 1}})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})
}

func TestVehicleGet(t *testing.T) {
	env := newTestEnv(t)

	t.Run("found", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/vehicles/7", "200", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		v := decodeResp[vehicleDTO](t, resp)
		require.Equal(t, uint64(7), v.ID)
	})

	t.Run("not found", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/vehicles/8", "200", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestIngestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("accepted without jwt", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/external/cargos", "", ingestRequest{
			APIKey: "partner", CreatedAt: "2026-08-31T10:00:00Z", Hash: "aaaa",
			Items: []ingestItem{{cargoCreateRequest: cargoCreateRequest{Title: "Щебень", Weight: 20}}},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		res := decodeResp[ingest.BatchResult](t, resp)
		require.Equal(t, 1, res.Accepted)
	})

	t.Run("malformed loading_date decodes batch-wide", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/external/cargos", "", ingestRequest{
			APIKey: "partner", CreatedAt: "2026-08-31T10:00:00Z", Hash: "aaaa",
			Items: []ingestItem{
				{cargoCreateRequest: cargoCreateRequest{Title: "Щебень", Weight: 20}, LoadingDate: "31.08.2026"},
				{cargoCreateRequest: cargoCreateRequest{Title: "Песок", Weight: 10}, LoadingDate: "2026-09-02"},
			},
		})
		// дата уходит в сервис сырой строкой, битое значение не даёт 400
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, env.ingest.got.Items, 2)
		require.Equal(t, "31.08.2026", env.ingest.got.Items[0].LoadingDate)
		require.Equal(t, "2026-09-02", env.ingest.got.Items[1].LoadingDate)
	})

	t.Run("bad signature", func(t *testing.T) {
		env.ingest.err = ingest.ErrUnauthorized
		defer func() { env.ingest.err = nil }()

		resp := env.do(t, http.MethodPost, "/v1/external/cargos", "", ingestRequest{APIKey: "partner"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rate limited", func(t *testing.T) {
		env.ingest.err = ingest.ErrRateLimited
		defer func() { env.ingest.err = nil }()

		resp := env.do(t, http.MethodPost, "/v1/external/cargos", "", ingestRequest{APIKey: "partner"})
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	})
}
