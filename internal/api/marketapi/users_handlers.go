package marketapi

import (
	"net/http"

	"github.com/LogitTrans/cargolink/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.users.Register(r.Context(), models.UserCreateInput{
		TelegramID:  subjectFrom(r.Context()),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Role:        models.UserRole(req.Role),
		PhoneNumber: req.PhoneNumber,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := s.users.AddVehicle(r.Context(), actorFrom(r.Context()), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleDTO(v))
}

func (s *Server) handleMyVehicles(w http.ResponseWriter, r *http.Request) {
	vs, err := s.users.MyVehicles(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]vehicleDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVehicleDTO(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVehicleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "invalid vehicle id")
		return
	}
	v, err := s.users.Vehicle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(v))
}
