package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the wire format for failed requests.
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler maps service errors onto HTTP responses.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err. Business-rule failures are logged
// at debug level; infrastructure failures at error level.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := r.Header.Get("X-Request-ID")

	status := http.StatusInternalServerError
	response := ErrorResponse{
		Error:     true,
		Type:      string(ErrorTypeInternal),
		Message:   "internal server error",
		RequestID: requestID,
	}

	if appErr := GetAppError(err); appErr != nil {
		if appErr.HTTPStatus != 0 {
			status = appErr.HTTPStatus
		}
		response.Type = string(appErr.Type)
		response.Message = appErr.Message
		response.Code = appErr.Code
		response.Details = appErr.Details

		switch appErr.Type {
		case ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeConflict, ErrorTypeUnauthorized:
			h.logger.Debug("request rejected",
				zap.String("type", string(appErr.Type)),
				zap.String("path", r.URL.Path),
				zap.String("message", appErr.Message),
			)
		default:
			h.logger.Error("request failed",
				zap.String("type", string(appErr.Type)),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
	} else {
		h.logger.Error("unclassified error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		h.logger.Error("failed to encode error response", zap.Error(encErr))
	}
}
