package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finboard/internal/core"
)

var errBadBody = errors.New("invalid request body")

// decodeJSON reads a single JSON object of at most maxBodyBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

// userIDParam returns the trimmed userId query parameter.
func userIDParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("userId"))
	if id == "" {
		return "", core.ErrUserIDRequired
	}
	return id, nil
}

// dateParam parses the named query parameter, returning fallback when it is
// absent.
func dateParam(r *http.Request, name string, fallback time.Time, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	return core.ParseDate(v, loc)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 24 {
		return 0, &core.ValidationError{Message: "Invalid " + name}
	}
	return n, nil
}

// sanitize trims and drops control characters other than tab and newline.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
