package locations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

// ErrValidation помечает ошибки входных данных, API отдаёт их как 400.
var ErrValidation = errors.New("validation")

type Repository interface {
	GetLocation(ctx context.Context, id uint64) (*models.Location, error)
	GetLocations(ctx context.Context, ids []uint64) ([]*models.Location, error)
	ListByLevelWithCoords(ctx context.Context, level models.LocationLevel) ([]*models.Location, error)
	SearchByName(ctx context.Context, query string, level *models.LocationLevel, countryID *uint64, limit int) ([]*models.Location, error)
	ListChildren(ctx context.Context, parentID *uint64) ([]*models.Location, error)
	Hierarchy(ctx context.Context, id uint64) ([]models.HierarchyEntry, error)
	UpsertLocation(ctx context.Context, in models.LocationImportInput) (*models.Location, error)
	DescendantIDs(ctx context.Context, id uint64) ([]uint64, error)
}

// ChoiceCache — кэш списков для пошагового выбора страна→регион→город.
// Справочник меняется только при импорте, TTL страхует от рассинхрона.
type ChoiceCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	repo  Repository
	cache ChoiceCache
	ttl   time.Duration
}

func New(repo Repository, cache ChoiceCache, choiceTTL time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: choiceTTL}
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *Service) Hierarchy(ctx context.Context, id uint64) ([]models.HierarchyEntry, error) {
	return s.repo.Hierarchy(ctx, id)
}

// Search ищет по имени и дополняет результаты полным путём вида
// "Россия, Московская область, Москва".
func (s *Service) Search(ctx context.Context, query string, level *models.LocationLevel, countryID *uint64, limit int) ([]models.LocationMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(ErrValidation, "query is empty")
	}

	found, err := s.repo.SearchByName(ctx, query, level, countryID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.LocationMatch, 0, len(found))
	for _, l := range found {
		chain, err := s.repo.Hierarchy(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.LocationMatch{
			ID:        l.ID,
			Name:      l.Name,
			Level:     l.Level,
			FullName:  fullName(chain),
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
		})
	}
	return out, nil
}

// Nearby возвращает узлы уровня level в радиусе radiusKm от точки,
// отсортированные по удалению. Узлы без координат не участвуют.
func (s *Service) Nearby(ctx context.Context, lat, lon, radiusKm float64, level models.LocationLevel) ([]models.LocationMatch, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, errors.Wrap(ErrValidation, "invalid coordinates")
	}
	if radiusKm <= 0 {
		return nil, errors.Wrap(ErrValidation, "radius must be positive")
	}

	candidates, err := s.repo.ListByLevelWithCoords(ctx, level)
	if err != nil {
		return nil, err
	}

	var out []models.LocationMatch
	for _, l := range candidates {
		d := haversineKm(lat, lon, *l.Latitude, *l.Longitude)
		if d > radiusKm {
			continue
		}
		chain, err := s.repo.Hierarchy(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.LocationMatch{
			ID:         l.ID,
			Name:       l.Name,
			Level:      l.Level,
			FullName:   fullName(chain),
			Latitude:   l.Latitude,
			Longitude:  l.Longitude,
			DistanceKm: d,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

// NearbyLocation — поиск вокруг существующего узла по его координатам.
func (s *Service) NearbyLocation(ctx context.Context, id uint64, radiusKm float64, level models.LocationLevel) ([]models.LocationMatch, error) {
	l, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.HasCoordinates() {
		return nil, errors.Wrapf(ErrValidation, "location %d has no coordinates", id)
	}
	return s.Nearby(ctx, *l.Latitude, *l.Longitude, radiusKm, level)
}

// Choices отдаёт дочерние узлы для пошагового выбора, корни при parentID=nil.
func (s *Service) Choices(ctx context.Context, parentID *uint64) ([]models.LocationChoice, error) {
	key := choiceKey(parentID)

	if s.cache != nil && s.ttl > 0 {
		var cached []models.LocationChoice
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	children, err := s.repo.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]models.LocationChoice, 0, len(children))
	for _, l := range children {
		out = append(out, models.LocationChoice{
			ID:             l.ID,
			Name:           l.Name,
			Code:           l.Code,
			Latitude:       l.Latitude,
			Longitude:      l.Longitude,
			AdditionalData: l.AdditionalData,
		})
	}

	if s.cache != nil && s.ttl > 0 {
		_ = s.cache.SetJSON(ctx, key, out, s.ttl)
	}
	return out, nil
}

// Import пачкой заводит или обновляет узлы справочника и сбрасывает
// затронутые ключи кэша выбора.
func (s *Service) Import(ctx context.Context, items []models.LocationImportInput) ([]*models.Location, error) {
	if len(items) == 0 {
		return nil, errors.Wrap(ErrValidation, "items is empty")
	}

	touched := map[string]struct{}{}
	out := make([]*models.Location, 0, len(items))
	for i, in := range items {
		if err := validateImport(in); err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		l, err := s.repo.UpsertLocation(ctx, in)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		out = append(out, l)
		touched[choiceKey(in.ParentID)] = struct{}{}
	}

	if s.cache != nil {
		keys := make([]string, 0, len(touched))
		for k := range touched {
			keys = append(keys, k)
		}
		_ = s.cache.Delete(ctx, keys...)
	}
	return out, nil
}

// DescendantIDs — узел и все его потомки, для фильтров по территории.
func (s *Service) DescendantIDs(ctx context.Context, id uint64) ([]uint64, error) {
	return s.repo.DescendantIDs(ctx, id)
}

// ValidateRoute проверяет, что все точки маршрута существуют.
func (s *Service) ValidateRoute(ctx context.Context, loadingID, unloadingID *uint64, waypointIDs []uint64) error {
	var ids []uint64
	if loadingID != nil {
		ids = append(ids, *loadingID)
	}
	if unloadingID != nil {
		ids = append(ids, *unloadingID)
	}
	ids = append(ids, waypointIDs...)
	if len(ids) == 0 {
		return nil
	}

	found, err := s.repo.GetLocations(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[uint64]struct{}, len(found))
	for _, l := range found {
		known[l.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return errors.Errorf("location %d not found", id)
		}
	}
	return nil
}

// ValidatePath проверяет согласованность административной цепочки:
// город должен лежать в указанной области, область и город — в указанной
// стране. Несуществующий id — это false, а не ошибка.
func (s *Service) ValidatePath(ctx context.Context, cityID, stateID, countryID *uint64) (bool, error) {
	load := func(id *uint64) (*models.Location, bool, error) {
		if id == nil {
			return nil, true, nil
		}
		l, err := s.repo.GetLocation(ctx, *id)
		if err != nil {
			if errors.Is(err, pgmarket.ErrNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return l, true, nil
	}

	city, ok, err := load(cityID)
	if err != nil || !ok {
		return false, err
	}
	state, ok, err := load(stateID)
	if err != nil || !ok {
		return false, err
	}
	country, ok, err := load(countryID)
	if err != nil || !ok {
		return false, err
	}

	if city != nil && state != nil {
		if city.ParentID == nil || *city.ParentID != state.ID {
			return false, nil
		}
	}
	if city != nil && country != nil {
		if city.CountryID == nil || *city.CountryID != country.ID {
			return false, nil
		}
	}
	if state != nil && country != nil {
		if state.CountryID == nil || *state.CountryID != country.ID {
			return false, nil
		}
	}
	return true, nil
}

func validateImport(in models.LocationImportInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Wrap(ErrValidation, "name is required")
	}
	switch in.Level {
	case models.LevelCountry:
		if in.ParentID != nil || in.CountryID != nil {
			return errors.Wrap(ErrValidation, "country must not have parent or country")
		}
	case models.LevelState, models.LevelCity:
		if in.ParentID == nil {
			return errors.Wrap(ErrValidation, "parent is required")
		}
		if in.CountryID == nil {
			return errors.Wrap(ErrValidation, "country is required")
		}
	default:
		return errors.Wrapf(ErrValidation, "unknown level %d", in.Level)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return errors.Wrap(ErrValidation, "latitude and longitude must be set together")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return errors.Wrap(ErrValidation, "latitude out of range")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return errors.Wrap(ErrValidation, "longitude out of range")
	}
	return nil
}

func choiceKey(parentID *uint64) string {
	if parentID == nil {
		return "loc:choices:root"
	}
	return fmt.Sprintf("loc:choices:%d", *parentID)
}

// fullName собирает "страна, регион, город" из цепочки страна→город,
// от общего к частному.
func fullName(chain []models.HierarchyEntry) string {
	names := make([]string, 0, len(chain))
	for _, e := range chain {
		names = append(names, e.Name)
	}
	return strings.Join(names, ", ")
}
