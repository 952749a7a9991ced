package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"

	"github.com/prophet-town/s2geometry/regionstore"
	"github.com/prophet-town/s2geometry/sphere"
)

// Error types reported by request handling.
const (
	ErrTypeBadRequest = "http_bad_request"
	ErrTypeBadToken   = "http_bad_cell_token"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeError maps an error to a status code by its type: malformed input is
// the caller's fault, a missing region is 404, anything else is a server
// failure and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.IsType(err, ErrTypeBadRequest),
		errors.IsType(err, ErrTypeBadToken),
		errors.IsType(err, regionstore.ErrTypeEmptyName):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.IsType(err, regionstore.ErrTypeNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	default:
		logs.WithTag("path", r.URL.Path).
			WithTag("method", r.Method).
			Error(errors.New("handling request failed").Wrap(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("decoding request body").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

// parseTokens converts cell tokens to a raw union. Tokens that do not parse
// to a valid cell are rejected, including the None token.
func parseTokens(tokens []string) (sphere.CellUnion, error) {
	u := make(sphere.CellUnion, 0, len(tokens))
	for _, token := range tokens {
		id := sphere.CellIDFromToken(token)
		if !id.IsValid() {
			return nil, errors.New("invalid cell token").
				WithType(ErrTypeBadToken).
				WithTag("token", token)
		}
		u = append(u, id)
	}
	return u, nil
}

func tokens(u sphere.CellUnion) []string {
	out := make([]string, len(u))
	for i, id := range u {
		out[i] = id.Token()
	}
	return out
}
