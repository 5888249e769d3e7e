package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

var validate = validator.New()

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    domain.ErrorType `json:"type"`
	Message string           `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err in the {"error": {"type", "message"}} shape. Errors
// that are not APIErrors become server errors.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = domain.ErrServer(err.Error())
	}
	writeJSON(w, apiErr.HTTPStatusCode(), errorEnvelope{Error: errorBody{Type: apiErr.Type, Message: apiErr.Message}})
}

// decodeBody reads a JSON body into dst and validates its struct tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return domain.ErrInvalidRequest(strings.Join(msgs, "; "))
		}
		return domain.ErrInvalidRequest(err.Error())
	}
	return nil
}
