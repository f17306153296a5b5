package marketapi

import (
	"context"
	"net/http"
	"time"

	"github.com/LogitTrans/cargolink/internal/models"
)

func (s *Server) handleCargoCreate(w http.ResponseWriter, r *http.Request) {
	var req cargoCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.cargos.Create(r.Context(), actorFrom(r.Context()), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCargoDTO(c))
}

func (s *Server) handleCargoGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid cargo id")
		return
	}
	c, err := s.cargos.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTO(c))
}

func (s *Server) handleCargoHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid cargo id")
		return
	}
	entries, err := s.cargos.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusEntryDTOs(entries))
}

type cargoStatusRequest struct {
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

func (s *Server) handleCargoStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid cargo id")
		return
	}
	var req cargoStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.cargos.UpdateStatus(r.Context(), actorFrom(r.Context()), id, models.CargoStatus(req.Status), req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTO(c))
}

type approvalRequest struct {
	Notes *string `json:"notes"`
}

func (s *Server) handleCargoApprove(w http.ResponseWriter, r *http.Request) {
	s.handleApproval(w, r, s.cargos.Approve)
}

func (s *Server) handleCargoReject(w http.ResponseWriter, r *http.Request) {
	s.handleApproval(w, r, s.cargos.Reject)
}

func (s *Server) handleApproval(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, actor models.Actor, id uint64, notes *string) (*models.Cargo, error),
) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid cargo id")
		return
	}
	var req approvalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := decide(r.Context(), actorFrom(r.Context()), id, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTO(c))
}

type assignRequest struct {
	RequestID uint64 `json:"request_id"`
}

func (s *Server) handleCargoAssign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid cargo id")
		return
	}
	var req assignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RequestID == 0 {
		badRequest(w, "request_id is required")
		return
	}
	cargo, carrierReq, err := s.cargos.Assign(r.Context(), actorFrom(r.Context()), id, req.RequestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentDTO{Cargo: toCargoDTO(cargo), Request: toRequestDTO(carrierReq)})
}

func (s *Server) handleCargoSearch(w http.ResponseWriter, r *http.Request) {
	f, err := cargoFilterFromQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	found, err := s.cargos.Search(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTOs(found))
}

func (s *Server) handleCargoMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid cargo id")
		return
	}
	matches, err := s.cargos.MatchRequests(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(matches))
}

func (s *Server) handleCargoStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cargos.Statistics(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func cargoFilterFromQuery(r *http.Request) (models.CargoFilter, error) {
	q := r.URL.Query()
	var f models.CargoFilter

	for _, s := range q["status"] {
		f.Statuses = append(f.Statuses, models.CargoStatus(s))
	}
	for _, s := range q["vehicle_type"] {
		f.VehicleTypes = append(f.VehicleTypes, models.BodyType(s))
	}
	for _, s := range q["loading_type"] {
		f.LoadingTypes = append(f.LoadingTypes, models.LoadingType(s))
	}

	loadingID, err := queryUint(r, "loading_location_id")
	if err != nil {
		return f, err
	}
	if loadingID != nil {
		f.LoadingLocationIDs = []uint64{*loadingID}
	}
	unloadingID, err := queryUint(r, "unloading_location_id")
	if err != nil {
		return f, err
	}
	if unloadingID != nil {
		f.UnloadingLocationIDs = []uint64{*unloadingID}
	}
	if v := q.Get("loading_point"); v != "" {
		f.LoadingPointQuery = &v
	}
	if v := q.Get("unloading_point"); v != "" {
		f.UnloadingPointQuery = &v
	}

	from, to, err := dateRange(r, "loading_date_from", "loading_date_to")
	if err != nil {
		return f, err
	}
	f.LoadingDateFrom, f.LoadingDateTo = from, to

	if v := q.Get("owner_id"); v != "" {
		f.OwnerID = &v
	}
	if v := q.Get("assigned_to_id"); v != "" {
		f.AssignedToID = &v
	}
	if v := q.Get("source_type"); v != "" {
		st := models.SourceType(v)
		f.SourceType = &st
	}

	f.MinWeight, err = queryFloat(r, "min_weight")
	if err != nil {
		return f, err
	}
	f.MaxWeight, err = queryFloat(r, "max_weight")
	if err != nil {
		return f, err
	}

	f.Limit = queryInt(r, "limit", 0)
	f.Offset = queryInt(r, "offset", 0)
	return f, nil
}

func dateRange(r *http.Request, fromName, toName string) (*time.Time, *time.Time, error) {
	parse := func(name string) (*time.Time, error) {
		s := r.URL.Query().Get(name)
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			// Допускаем и короткую форму YYYY-MM-DD.
			t, err = time.Parse("2006-01-02", s)
			if err != nil {
				return nil, err
			}
		}
		return &t, nil
	}
	from, err := parse(fromName)
	if err != nil {
		return nil, nil, err
	}
	to, err := parse(toName)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
