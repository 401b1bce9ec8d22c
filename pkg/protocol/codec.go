package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidJSON   = errors.New("body is invalid json")
	ErrMissingFields = errors.New("required fields missing")
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Decode reads a JSON body of at most MaxBodyBytes into v.
func Decode(r io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(r, MaxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// DecodeValidate decodes v and runs its `validate` struct tags.
func DecodeValidate(r io.Reader, v any) error {
	if err := Decode(r, v); err != nil {
		return err
	}
	if err := getValidator().Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	return nil
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// WriteError writes an ErrorResponse body.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// ReadError extracts the backend's error message from a failed response
// body. It returns "" when the body carries no usable message.
func ReadError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil || len(data) == 0 {
		return ""
	}
	var e ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		return ""
	}
	return e.Error
}
