package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/api-sage/ledger-core/src/internal/domain"
)

const actorHeader = "X-Actor-ID"

var kindMessages = map[domain.ErrorKind]string{
	domain.KindInvalidParameters:      "validation failed",
	domain.KindAccountNotFound:        "account not found",
	domain.KindAccountInactive:        "account is not active",
	domain.KindInsufficientFunds:      "insufficient funds",
	domain.KindDailyLimitExceeded:     "daily limit exceeded",
	domain.KindConcurrencyConflict:    "concurrent update, please retry",
	domain.KindPersistenceUnavailable: "ledger temporarily unavailable",
	domain.KindNotFound:               "record not found",
	domain.KindInvalidState:           "invalid status transition",
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidParameters:
		return http.StatusBadRequest
	case domain.KindAccountNotFound, domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAccountInactive, domain.KindConcurrencyConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindInsufficientFunds, domain.KindDailyLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.KindPersistenceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the envelope for a service error. Validation errors list
// every field message; other kinds carry the error text.
func errorBody[T any](err error) commons.Response[T] {
	kind := domain.KindOf(err)
	message, ok := kindMessages[kind]
	if !ok {
		return commons.ErrorResponse[T]("internal server error").WithKind(string(domain.KindUnknown))
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return commons.ErrorResponse[T](message, validation.Errors...).WithKind(string(kind))
	}
	return commons.ErrorResponse[T](message, err.Error()).WithKind(string(kind))
}

func writeServiceError[T any](w http.ResponseWriter, r *http.Request, err error, start time.Time) {
	logError(r, err, nil)
	status := statusFor(err)
	response := errorBody[T](err)
	writeJSON(w, status, response)
	logResponse(r, status, response, start)
}

func writeSuccess[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T, start time.Time) {
	response := commons.SuccessResponse(message, data)
	writeJSON(w, status, response)
	logResponse(r, status, response, start)
}

func writeFailure[T any](w http.ResponseWriter, r *http.Request, status int, start time.Time, message string, errs ...string) {
	response := commons.ErrorResponse[T](message, errs...)
	writeJSON(w, status, response)
	logResponse(r, status, response, start)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// actorID prefers an explicit actor header and falls back to the channel
// that authenticated the request.
func actorID(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
		return actor
	}
	if channel, _, ok := r.BasicAuth(); ok {
		return channel
	}
	return ""
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil {
		return 0
	}
	return limit
}

func protect(handler http.HandlerFunc, authMiddleware func(http.Handler) http.Handler) http.Handler {
	if authMiddleware == nil {
		return handler
	}
	return authMiddleware(handler)
}
