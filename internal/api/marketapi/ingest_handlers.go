package marketapi

import (
	"net/http"

	"github.com/LogitTrans/cargolink/internal/services/ingest"
)

// Внешнее поле loading_date затеняет одноимённое time.Time из
// встроенной структуры: дата приходит строкой и разбирается сервисом
// поэлементно, чтобы битая дата не роняла всю пачку на декодинге.
type ingestItem struct {
	cargoCreateRequest
	SourceID    *string `json:"source_id"`
	LoadingDate string  `json:"loading_date"`
}

type ingestRequest struct {
	APIKey    string       `json:"api_key"`
	CreatedAt string       `json:"created_at"`
	Hash      string       `json:"hash"`
	Items     []ingestItem `json:"items"`
}

// Пакетный приём грузов от внешних систем. Авторизация — подписью
// запроса, JWT здесь не участвует.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b := Batch{
		APIKey:    req.APIKey,
		CreatedAt: req.CreatedAt,
		Hash:      req.Hash,
	}
	for _, it := range req.Items {
		in := it.toInput()
		in.SourceID = it.SourceID
		b.Items = append(b.Items, ingest.Item{Input: in, LoadingDate: it.LoadingDate})
	}

	res, err := s.ingest.Ingest(r.Context(), b)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Rejected > 0 && res.Accepted > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}
