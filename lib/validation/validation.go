package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
)

// ErrInvalidRange is returned for malformed or inverted year bounds.
var ErrInvalidRange = errors.New("invalid year range")

// yearRegex matches an optionally negative whole year.
var yearRegex = regexp.MustCompile(`^-?\d{1,6}$`)

// YearRange holds the year bounds requested by a client. A nil bound was
// not supplied and falls back to the dataset's observed bound.
type YearRange struct {
	Min *int
	Max *int
}

// ParseYearRange validates the raw year_min/year_max parameters. Empty
// strings mean "not supplied". Both bounds, when given, must be whole
// years. An inverted pair is accepted; the range filter swaps it.
func ParseYearRange(minRaw, maxRaw string) (YearRange, error) {
	var r YearRange

	lo, err := parseYear("year_min", minRaw)
	if err != nil {
		return r, err
	}
	hi, err := parseYear("year_max", maxRaw)
	if err != nil {
		return r, err
	}

	r.Min, r.Max = lo, hi
	return r, nil
}

func parseYear(name, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	if !yearRegex.MatchString(raw) {
		return nil, fmt.Errorf("%w: %s %q is not a whole year", ErrInvalidRange, name, raw)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRange, name, err)
	}
	return &v, nil
}

// ValidatePagination validates pagination parameters to ensure they are within
// acceptable ranges. Returns an error if the parameters are invalid.
func ValidatePagination(page, size int) error {
	if page < 1 {
		return fmt.Errorf("page must be greater than 0")
	}
	if size < 1 || size > 100 {
		return fmt.Errorf("size must be between 1 and 100")
	}
	return nil
}

// WriteError writes a JSON error body with the given status.
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		slog.Error("Failed to encode error response", slog.Any("error", err))
	}
}
