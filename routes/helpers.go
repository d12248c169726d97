package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"mediaforge/failures"
	"mediaforge/logger"
)

type errorBody struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// respondError maps err's failure kind to a status code.
func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, failures.HTTPStatus(err), errorBody{
		Detail: err.Error(),
		Kind:   failures.KindOf(err).String(),
	})
}

func respondDetail(w http.ResponseWriter, status int, kind, detail string) {
	respondJSON(w, status, errorBody{Detail: detail, Kind: kind})
}

func formValueOr(r *http.Request, key, fallback string) string {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return fallback
	}
	return v
}

// intFormValue parses an optional integer field. Unlike a silent fallback,
// a value that is present but not a number is a validation error.
func intFormValue(r *http.Request, key string, fallback int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, failures.Validationf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// validationError flattens validator output into one Validation failure.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return failures.Validationf("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return failures.Validationf("invalid request: %s", strings.Join(msgs, "; "))
}
