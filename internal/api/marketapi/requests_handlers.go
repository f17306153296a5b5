package marketapi

import (
	"context"
	"net/http"

	"github.com/LogitTrans/cargolink/internal/models"
)

func (s *Server) handleRequestCreate(w http.ResponseWriter, r *http.Request) {
	var req requestCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cr, err := s.requests.Create(r.Context(), actorFrom(r.Context()), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(cr))
}

func (s *Server) handleRequestGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}
	cr, err := s.requests.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(cr))
}

func (s *Server) handleRequestSearch(w http.ResponseWriter, r *http.Request) {
	f, err := requestFilterFromQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	found, err := s.requests.Search(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(found))
}

func (s *Server) handleRequestMy(w http.ResponseWriter, r *http.Request) {
	found, err := s.requests.My(r.Context(), actorFrom(r.Context()), queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(found))
}

type requestStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}
	var req requestStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cr, err := s.requests.UpdateStatus(r.Context(), actorFrom(r.Context()), id, models.RequestStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(cr))
}

func (s *Server) handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	s.handleRequestAction(w, r, s.requests.Cancel)
}

func (s *Server) handleRequestComplete(w http.ResponseWriter, r *http.Request) {
	s.handleRequestAction(w, r, s.requests.Complete)
}

func (s *Server) handleRequestReopen(w http.ResponseWriter, r *http.Request) {
	s.handleRequestAction(w, r, s.requests.Reopen)
}

func (s *Server) handleRequestAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, actor models.Actor, id uint64) (*models.CarrierRequest, error),
) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}
	cr, err := action(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(cr))
}

type decisionRequest struct {
	Accept bool `json:"accept"`
}

// Решение перевозчика по назначенному грузу.
func (s *Server) handleRequestDecision(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}
	var req decisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cargo, cr, err := s.cargos.Decide(r.Context(), actorFrom(r.Context()), id, req.Accept)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentDTO{Cargo: toCargoDTO(cargo), Request: toRequestDTO(cr)})
}

func (s *Server) handleRequestMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}
	matches, err := s.requests.MatchCargos(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTOs(matches))
}

func requestFilterFromQuery(r *http.Request) (models.RequestFilter, error) {
	q := r.URL.Query()
	var f models.RequestFilter

	for _, s := range q["status"] {
		f.Statuses = append(f.Statuses, models.RequestStatus(s))
	}
	if v := q.Get("carrier_id"); v != "" {
		f.CarrierID = &v
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

	from, to, err := dateRange(r, "ready_date_from", "ready_date_to")
	if err != nil {
		return f, err
	}
	f.ReadyDateFrom, f.ReadyDateTo = from, to

	f.Limit = queryInt(r, "limit", 0)
	f.Offset = queryInt(r, "offset", 0)
	return f, nil
}
