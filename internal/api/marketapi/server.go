package marketapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/services/ingest"
)

type UsersService interface {
	Register(ctx context.Context, in models.UserCreateInput) (*models.User, error)
	Get(ctx context.Context, telegramID string) (*models.User, error)
	AddVehicle(ctx context.Context, actor models.Actor, in models.VehicleCreateInput) (*models.Vehicle, error)
	MyVehicles(ctx context.Context, actor models.Actor) ([]*models.Vehicle, error)
	Vehicle(ctx context.Context, id uint64) (*models.Vehicle, error)
}

type LocationsService interface {
	Get(ctx context.Context, id uint64) (*models.Location, error)
	Hierarchy(ctx context.Context, id uint64) ([]models.HierarchyEntry, error)
	Search(ctx context.Context, query string, level *models.LocationLevel, countryID *uint64, limit int) ([]models.LocationMatch, error)
	Nearby(ctx context.Context, lat, lon, radiusKm float64, level models.LocationLevel) ([]models.LocationMatch, error)
	NearbyLocation(ctx context.Context, id uint64, radiusKm float64, level models.LocationLevel) ([]models.LocationMatch, error)
	Choices(ctx context.Context, parentID *uint64) ([]models.LocationChoice, error)
	Import(ctx context.Context, items []models.LocationImportInput) ([]*models.Location, error)
	ValidatePath(ctx context.Context, cityID, stateID, countryID *uint64) (bool, error)
}

type CargosService interface {
	Create(ctx context.Context, actor models.Actor, in models.CargoCreateInput) (*models.Cargo, error)
	Get(ctx context.Context, actor models.Actor, id uint64) (*models.Cargo, error)
	History(ctx context.Context, id uint64) ([]models.CargoStatusEntry, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id uint64, to models.CargoStatus, comment *string) (*models.Cargo, error)
	Approve(ctx context.Context, actor models.Actor, id uint64, notes *string) (*models.Cargo, error)
	Reject(ctx context.Context, actor models.Actor, id uint64, notes *string) (*models.Cargo, error)
	Assign(ctx context.Context, actor models.Actor, cargoID, requestID uint64) (*models.Cargo, *models.CarrierRequest, error)
	Decide(ctx context.Context, actor models.Actor, requestID uint64, accept bool) (*models.Cargo, *models.CarrierRequest, error)
	Search(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error)
	MatchRequests(ctx context.Context, cargoID uint64) ([]*models.CarrierRequest, error)
	Statistics(ctx context.Context, actor models.Actor) (*models.CargoStats, error)
}

type RequestsService interface {
	Create(ctx context.Context, actor models.Actor, in models.CarrierRequestCreateInput) (*models.CarrierRequest, error)
	Get(ctx context.Context, id uint64) (*models.CarrierRequest, error)
	Search(ctx context.Context, f models.RequestFilter) ([]*models.CarrierRequest, error)
	My(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.CarrierRequest, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id uint64, to models.RequestStatus) (*models.CarrierRequest, error)
	Cancel(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error)
	Complete(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error)
	Reopen(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error)
	MatchCargos(ctx context.Context, requestID uint64) ([]*models.Cargo, error)
}

type IngestService interface {
	Ingest(ctx context.Context, b Batch) (*ingest.BatchResult, error)
}

// Batch повторно экспортируется, чтобы хендлеру внешнего приёма не
// зависеть от конкретного сервиса.
type Batch = ingest.Batch

type Server struct {
	users     UsersService
	locations LocationsService
	cargos    CargosService
	requests  RequestsService
	ingest    IngestService

	jwtSecret []byte
	log       *slog.Logger
}

func New(
	users UsersService,
	locations LocationsService,
	cargos CargosService,
	requests RequestsService,
	ingestSvc IngestService,
	jwtSecret []byte,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		users:     users,
		locations: locations,
		cargos:    cargos,
		requests:  requests,
		ingest:    ingestSvc,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLog)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		// Регистрация требует только валидный токен: пользователя в
		// базе ещё нет, его Telegram ID берём из subject.
		r.With(s.authToken).Post("/users", s.handleRegister)

		// Внешний приём авторизуется подписью, не JWT.
		r.Post("/external/cargos", s.handleIngest)

		r.Group(func(r chi.Router) {
			r.Use(s.authToken, s.authUser)

			r.Get("/users/me", s.handleMe)

			r.Post("/vehicles", s.handleAddVehicle)
			r.Get("/vehicles", s.handleMyVehicles)
			r.Get("/vehicles/{id}", s.handleVehicleGet)

			r.Route("/locations", func(r chi.Router) {
				r.Get("/search", s.handleLocationSearch)
				r.Get("/nearby", s.handleLocationNearby)
				r.Get("/choices", s.handleLocationChoices)
				r.Post("/import", s.handleLocationImport)
				r.Get("/{id}", s.handleLocationGet)
				r.Get("/{id}/hierarchy", s.handleLocationHierarchy)
				r.Get("/{id}/nearby", s.handleLocationNearbyByID)
				r.Post("/validate-path", s.handleLocationValidatePath)
			})

			r.Route("/cargos", func(r chi.Router) {
				r.Post("/", s.handleCargoCreate)
				r.Get("/", s.handleCargoSearch)
				r.Get("/stats", s.handleCargoStats)
				r.Get("/{id}", s.handleCargoGet)
				r.Get("/{id}/history", s.handleCargoHistory)
				r.Get("/{id}/matches", s.handleCargoMatches)
				r.Post("/{id}/status", s.handleCargoStatus)
				r.Post("/{id}/approve", s.handleCargoApprove)
				r.Post("/{id}/reject", s.handleCargoReject)
				r.Post("/{id}/assign", s.handleCargoAssign)
			})

			r.Route("/carrier-requests", func(r chi.Router) {
				r.Post("/", s.handleRequestCreate)
				r.Get("/", s.handleRequestSearch)
				r.Get("/my", s.handleRequestMy)
				r.Get("/{id}", s.handleRequestGet)
				r.Get("/{id}/matches", s.handleRequestMatches)
				r.Post("/{id}/status", s.handleRequestStatus)
				r.Post("/{id}/cancel", s.handleRequestCancel)
				r.Post("/{id}/complete", s.handleRequestComplete)
				r.Post("/{id}/reopen", s.handleRequestReopen)
				r.Post("/{id}/decision", s.handleRequestDecision)
			})
		})
	})

	return r
}

// requestLog навешивает request id и пишет одну строку на запрос.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
