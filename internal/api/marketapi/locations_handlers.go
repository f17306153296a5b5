package marketapi

import (
	"net/http"
	"strings"

	"github.com/LogitTrans/cargolink/internal/models"
)

func (s *Server) handleLocationGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid location id")
		return
	}
	loc, err := s.locations.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationDTO(loc))
}

func (s *Server) handleLocationHierarchy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid location id")
		return
	}
	chain, err := s.locations.Hierarchy(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

func (s *Server) handleLocationSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		badRequest(w, "q is required")
		return
	}
	var level *models.LocationLevel
	if lv, err := queryUint(r, "level"); err != nil {
		badRequest(w, err.Error())
		return
	} else if lv != nil {
		l := models.LocationLevel(*lv)
		level = &l
	}
	countryID, err := queryUint(r, "country_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	matches, err := s.locations.Search(r.Context(), q, level, countryID, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleLocationNearby(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil || lat == nil {
		badRequest(w, "lat is required")
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil || lon == nil {
		badRequest(w, "lon is required")
		return
	}
	radius, err := queryFloat(r, "radius_km")
	if err != nil || radius == nil {
		badRequest(w, "radius_km is required")
		return
	}
	level := models.LocationLevel(queryInt(r, "level", int(models.LevelCity)))

	matches, err := s.locations.Nearby(r.Context(), *lat, *lon, *radius, level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleLocationNearbyByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid location id")
		return
	}
	radius, err := queryFloat(r, "radius_km")
	if err != nil || radius == nil {
		badRequest(w, "radius_km is required")
		return
	}
	level := models.LocationLevel(queryInt(r, "level", int(models.LevelCity)))

	matches, err := s.locations.NearbyLocation(r.Context(), id, *radius, level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleLocationChoices(w http.ResponseWriter, r *http.Request) {
	parentID, err := queryUint(r, "parent_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	choices, err := s.locations.Choices(r.Context(), parentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

type validatePathRequest struct {
	CityID    *uint64 `json:"city_id"`
	StateID   *uint64 `json:"state_id"`
	CountryID *uint64 `json:"country_id"`
}

// Несогласованная цепочка — это обычный ответ valid=false, не ошибка.
func (s *Server) handleLocationValidatePath(w http.ResponseWriter, r *http.Request) {
	var req validatePathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ok, err := s.locations.ValidatePath(r.Context(), req.CityID, req.StateID, req.CountryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

// Импорт справочника доступен только операторам платформы.
func (s *Server) handleLocationImport(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if actor.Role != models.RoleManager && actor.Role != models.RoleLogitTrans {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	var items []locationImportItem
	if !decodeBody(w, r, &items) {
		return
	}
	in := make([]models.LocationImportInput, 0, len(items))
	for _, it := range items {
		in = append(in, models.LocationImportInput{
			Name:           it.Name,
			Level:          models.LocationLevel(it.Level),
			ParentID:       it.ParentID,
			CountryID:      it.CountryID,
			Latitude:       it.Latitude,
			Longitude:      it.Longitude,
			Code:           it.Code,
			AdditionalData: it.AdditionalData,
		})
	}
	locs, err := s.locations.Import(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]locationDTO, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationDTO(l))
	}
	writeJSON(w, http.StatusCreated, out)
}
