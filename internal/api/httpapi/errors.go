package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/clipforge/editpipeline/internal/errkit"
)

// errorResponse is the JSON body returned alongside every non-2xx response.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func errUnauthorized(msg string) error { return errkit.New(errkit.ErrUnauthorized, msg) }
func errForbidden(msg string) error    { return errkit.New(errkit.ErrForbidden, msg) }
func errValidation(msg string) error   { return errkit.New(errkit.ErrValidation, msg) }
func errNotFound(msg string) error     { return errkit.New(errkit.ErrNotFound, msg) }

// writeError translates err to its errkit Kind's HTTP status and writes the
// {error, request_id} envelope. Errors not already wrapped in an
// errkit.Error fall back to errkit.ErrInternal (500), never leaking the raw
// error string for unrecognized failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errkit.KindOf(err)
	status := errkit.HTTPStatus(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errValidation("invalid request body: " + err.Error())
	}
	return nil
}
