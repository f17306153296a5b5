package locations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LogitTrans/cargolink/internal/models"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

type fakeRepo struct {
	byID map[uint64]*models.Location

	searchOut []*models.Location
	searchErr error

	childrenCalls int
	childrenOut   []*models.Location

	upserted []models.LocationImportInput
}

func (f *fakeRepo) GetLocation(ctx context.Context, id uint64) (*models.Location, error) {
	if l, ok := f.byID[id]; ok {
		return l, nil
	}
	return nil, pgmarket.ErrNotFound
}

func (f *fakeRepo) GetLocations(ctx context.Context, ids []uint64) ([]*models.Location, error) {
	var out []*models.Location
	for _, id := range ids {
		if l, ok := f.byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByLevelWithCoords(ctx context.Context, level models.LocationLevel) ([]*models.Location, error) {
	var out []*models.Location
	for _, l := range f.byID {
		if l.Level == level && l.HasCoordinates() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) SearchByName(ctx context.Context, query string, level *models.LocationLevel, countryID *uint64, limit int) ([]*models.Location, error) {
	return f.searchOut, f.searchErr
}

func (f *fakeRepo) ListChildren(ctx context.Context, parentID *uint64) ([]*models.Location, error) {
	f.childrenCalls++
	return f.childrenOut, nil
}

func (f *fakeRepo) Hierarchy(ctx context.Context, id uint64) ([]models.HierarchyEntry, error) {
	var chain []models.HierarchyEntry
	cur := &id
	for cur != nil {
		l, ok := f.byID[*cur]
		if !ok {
			return nil, pgmarket.ErrNotFound
		}
		chain = append([]models.HierarchyEntry{{ID: l.ID, Name: l.Name, Level: l.Level}}, chain...)
		cur = l.ParentID
	}
	return chain, nil
}

func (f *fakeRepo) DescendantIDs(ctx context.Context, id uint64) ([]uint64, error) {
	out := []uint64{id}
	for _, l := range f.byID {
		if l.ParentID != nil && *l.ParentID == id {
			out = append(out, l.ID)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertLocation(ctx context.Context, in models.LocationImportInput) (*models.Location, error) {
	f.upserted = append(f.upserted, in)
	return &models.Location{ID: uint64(len(f.upserted)), Name: in.Name, Level: in.Level}, nil
}

type fakeChoiceCache struct {
	m       map[string][]byte
	deleted []string
	sets    int
}

func (c *fakeChoiceCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	_, ok := c.m[key]
	return ok, nil
}

func (c *fakeChoiceCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	c.m[key] = []byte("x")
	c.sets++
	return nil
}

func (c *fakeChoiceCache) Delete(ctx context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func treeRepo() *fakeRepo {
	country := &models.Location{ID: 1, Name: "Россия", Level: models.LevelCountry}
	state := &models.Location{ID: 2, Name: "Татарстан", Level: models.LevelState, ParentID: ptr(uint64(1)), CountryID: ptr(uint64(1))}
	kazan := &models.Location{
		ID: 3, Name: "Казань", Level: models.LevelCity,
		ParentID: ptr(uint64(2)), CountryID: ptr(uint64(1)),
		Latitude: ptr(55.7963), Longitude: ptr(49.1088),
	}
	chelny := &models.Location{
		ID: 4, Name: "Набережные Челны", Level: models.LevelCity,
		ParentID: ptr(uint64(2)), CountryID: ptr(uint64(1)),
		Latitude: ptr(55.7430), Longitude: ptr(52.3954),
	}
	moscow := &models.Location{
		ID: 5, Name: "Москва", Level: models.LevelCity,
		ParentID: ptr(uint64(1)), CountryID: ptr(uint64(1)),
		Latitude: ptr(55.7558), Longitude: ptr(37.6173),
	}
	return &fakeRepo{byID: map[uint64]*models.Location{
		1: country, 2: state, 3: kazan, 4: chelny, 5: moscow,
	}}
}

func TestService_Search_FullName(t *testing.T) {
	r := treeRepo()
	r.searchOut = []*models.Location{r.byID[3]}
	s := New(r, nil, 0)

	got, err := s.Search(context.Background(), "каз", nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// полный путь от общего к частному
	require.Equal(t, "Россия, Татарстан, Казань", got[0].FullName)

	_, err = s.Search(context.Background(), "   ", nil, nil, 10)
	require.Error(t, err)
}

func TestService_Nearby_SortedAndFiltered(t *testing.T) {
	s := New(treeRepo(), nil, 0)

	// от Казани: Челны ~200 км, Москва ~720 км
	got, err := s.Nearby(context.Background(), 55.7963, 49.1088, 300, models.LevelCity)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(3), got[0].ID)
	require.InDelta(t, 0, got[0].DistanceKm, 0.5)
	require.Equal(t, uint64(4), got[1].ID)
	require.InDelta(t, 205, got[1].DistanceKm, 15)
	require.Equal(t, "Россия, Татарстан, Казань", got[0].FullName)
	require.Equal(t, "Россия, Татарстан, Набережные Челны", got[1].FullName)

	got, err = s.Nearby(context.Background(), 55.7963, 49.1088, 1000, models.LevelCity)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, uint64(5), got[2].ID)

	_, err = s.Nearby(context.Background(), 91, 0, 100, models.LevelCity)
	require.Error(t, err)
	_, err = s.Nearby(context.Background(), 0, 0, -1, models.LevelCity)
	require.Error(t, err)
}

func TestService_NearbyLocation_NoCoords(t *testing.T) {
	s := New(treeRepo(), nil, 0)

	// у страны нет координат
	_, err := s.NearbyLocation(context.Background(), 1, 100, models.LevelCity)
	require.Error(t, err)

	got, err := s.NearbyLocation(context.Background(), 3, 300, models.LevelCity)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestService_Choices_Cached(t *testing.T) {
	r := treeRepo()
	r.childrenOut = []*models.Location{r.byID[1]}
	c := &fakeChoiceCache{m: map[string][]byte{}}
	s := New(r, c, time.Minute)

	_, err := s.Choices(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, r.childrenCalls)
	require.Equal(t, 1, c.sets)

	// второй вызов идёт из кэша
	_, err = s.Choices(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, r.childrenCalls)
}

func TestService_Import_ValidatesAndInvalidates(t *testing.T) {
	r := treeRepo()
	c := &fakeChoiceCache{m: map[string][]byte{"loc:choices:root": []byte("x")}}
	s := New(r, c, time.Minute)

	_, err := s.Import(context.Background(), nil)
	require.Error(t, err)

	// у страны не может быть родителя
	_, err = s.Import(context.Background(), []models.LocationImportInput{
		{Name: "X", Level: models.LevelCountry, ParentID: ptr(uint64(1))},
	})
	require.Error(t, err)

	// региону нужен и родитель, и страна
	_, err = s.Import(context.Background(), []models.LocationImportInput{
		{Name: "X", Level: models.LevelState, ParentID: ptr(uint64(1))},
	})
	require.Error(t, err)

	// координаты только парой
	_, err = s.Import(context.Background(), []models.LocationImportInput{
		{Name: "X", Level: models.LevelCountry, Latitude: ptr(10.0)},
	})
	require.Error(t, err)

	out, err := s.Import(context.Background(), []models.LocationImportInput{
		{Name: "Беларусь", Level: models.LevelCountry},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Contains(t, c.deleted, "loc:choices:root")
}

func TestService_ValidateRoute(t *testing.T) {
	s := New(treeRepo(), nil, 0)
	ctx := context.Background()

	require.NoError(t, s.ValidateRoute(ctx, ptr(uint64(3)), ptr(uint64(5)), []uint64{4}))
	require.NoError(t, s.ValidateRoute(ctx, nil, nil, nil))

	err := s.ValidateRoute(ctx, ptr(uint64(3)), ptr(uint64(999)), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "999")
}

func TestService_ValidatePath(t *testing.T) {
	s := New(treeRepo(), nil, 0)
	ctx := context.Background()

	// Казань → Татарстан → Россия
	ok, err := s.ValidatePath(ctx, ptr(uint64(3)), ptr(uint64(2)), ptr(uint64(1)))
	require.NoError(t, err)
	require.True(t, ok)

	// Москва подчинена напрямую стране, Татарстан ей не родитель
	ok, err = s.ValidatePath(ctx, ptr(uint64(5)), ptr(uint64(2)), nil)
	require.NoError(t, err)
	require.False(t, ok)

	// несуществующий id — false, не ошибка
	ok, err = s.ValidatePath(ctx, ptr(uint64(999)), nil, nil)
	require.NoError(t, err)
	require.False(t, ok)

	// пустые аргументы валидны
	ok, err = s.ValidatePath(ctx, nil, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHaversineKm(t *testing.T) {
	// Москва — Санкт-Петербург, около 634 км
	d := haversineKm(55.7558, 37.6173, 59.9311, 30.3609)
	require.InDelta(t, 634, d, 10)

	require.InDelta(t, 0, haversineKm(55, 37, 55, 37), 0.001)

	// четверть экватора
	require.InDelta(t, 10007.5, haversineKm(0, 0, 0, 90), 10)
}
