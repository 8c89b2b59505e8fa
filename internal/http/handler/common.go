package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their json names so error keys match the wire format
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	message := "One or more fields failed validation"

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fieldPath(fe)] = formatValidationError(fe)
		}
		if len(ve) == 1 {
			message = fields[fieldPath(ve[0])]
		}
	}

	respondJSON(w, http.StatusBadRequest, domain.APIError{
		Message: message,
		Type:    domain.ErrorTypeValidation,
		Status:  http.StatusBadRequest,
		Errors:  fields,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Must be a valid email address"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "eqfield":
		return fmt.Sprintf("Must match %s", paramFieldName(fe))
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// fieldPath is the json path of the failing field without the struct name,
// e.g. "customerId" or "products[0].productId"
func fieldPath(fe validator.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
		return path
	}
	return fe.Field()
}

// paramFieldName names the other field of a cross-field rule such as eqfield=Password.
// The param is a Go field name; request DTOs use camelCase json names.
func paramFieldName(fe validator.FieldError) string {
	p := fe.Param()
	if p == "" {
		return p
	}
	return strings.ToLower(p[:1]) + p[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{
		Message: message,
		Type:    getErrorType(status),
		Status:  status,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return domain.ErrorTypeRateLimited
	default:
		return domain.ErrorTypeInternal
	}
}

// handleServiceError maps service errors to HTTP responses. Unknown errors are
// logged and reported as 500 without leaking their text.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, domain.APIError{
			Message: verr.Message,
			Type:    domain.ErrorTypeValidation,
			Status:  http.StatusBadRequest,
			Errors:  map[string]string{verr.Field: verr.Message},
		})
	case errors.Is(err, service.ErrInvalidStage):
		respondWithError(w, http.StatusBadRequest, "invalid stage")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, detail(err, service.ErrInvalidInput))
	case errors.Is(err, service.ErrCustomerNotFound):
		respondWithError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, service.ErrSellerNotFound):
		respondWithError(w, http.StatusNotFound, "seller not found")
	case errors.Is(err, service.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, http.StatusConflict, detail(err, service.ErrConflict))
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "forbidden")
	default:
		logger.Error("request failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// detail drops the sentinel prefix from errors built as fmt.Errorf("%w: ...", sentinel)
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

// decodeBody reads a JSON body into dst and returns the raw top-level fields,
// so handlers can tell an explicit null from an absent key.
func decodeBody(r *http.Request, dst interface{}) (map[string]json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("request body is empty")
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	_ = json.Unmarshal(raw, &fields)
	return fields, nil
}

// isNull reports whether key is present in fields with a JSON null value
func isNull(fields map[string]json.RawMessage, key string) bool {
	value, ok := fields[key]
	return ok && bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// parseID reads the {id} route parameter
func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.New("invalid id")
	}
	return id, nil
}

// queryUUID reads an optional UUID query parameter
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &id, nil
}
