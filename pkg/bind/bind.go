// Package bind decodes a JSON request body into a struct and validates it.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

// Error is a body that could not be decoded. Status is 400 or 413.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

func limit() int64 {
	n := config.Int("MAX_BODY_BYTES", 4<<20)
	if n <= 0 {
		return 4 << 20
	}
	return int64(n)
}

// JSON decodes r.Body into dest, then validates it. An absent body is
// treated as {} so endpoints with only optional fields accept it.
// Decode problems come back as *Error; rule failures as the map.
func JSON(r *http.Request, dest any) (map[string]string, error) {
	if err := decode(r, dest); err != nil {
		return nil, err
	}
	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

func decode(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return &Error{Status: http.StatusUnsupportedMediaType, Msg: "Content-Type must be application/json"}
	}

	body := http.MaxBytesReader(nil, r.Body, limit())
	dec := json.NewDecoder(body)
	err := dec.Decode(dest)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return &Error{Status: http.StatusRequestEntityTooLarge, Msg: fmt.Sprintf("request body too large (max %d bytes)", tooLarge.Limit)}
	case err != nil:
		return &Error{Status: http.StatusBadRequest, Msg: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return &Error{Status: http.StatusBadRequest, Msg: "invalid JSON: unexpected data after body"}
	}
	return nil
}
