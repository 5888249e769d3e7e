package assistant

import (
	"encoding/json"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// TurnRequest is the body of a streamed turn.
type TurnRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// ErrorResponse is the error body returned by the assistant service. FastAPI
// style services answer with a bare "detail" instead of an error object.
type ErrorResponse struct {
	Error  *ErrorBody      `json:"error,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// ErrorBody is a structured error.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParseErrorResponse converts a non-2xx response into a canonical error. Bodies
// that are not JSON become the error message.
func ParseErrorResponse(status int, data []byte) *domain.APIError {
	apiErr := &domain.APIError{
		Type:       domain.ErrorTypeForStatus(status),
		StatusCode: status,
	}

	var resp ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		apiErr.Message = string(data)
		return apiErr
	}

	switch {
	case resp.Error != nil:
		apiErr.Message = resp.Error.Message
		if resp.Error.Type != "" {
			apiErr.Type = domain.ErrorType(resp.Error.Type)
		}
	case len(resp.Detail) > 0:
		var s string
		if err := json.Unmarshal(resp.Detail, &s); err == nil {
			apiErr.Message = s
		} else {
			apiErr.Message = string(resp.Detail)
		}
	default:
		apiErr.Message = string(data)
	}
	return apiErr
}
