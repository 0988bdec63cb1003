package collector

import (
	"context"
	"errors"
	"fmt"

	"IceStock/internal/model"
)

// Source fetches a normalized forecast of at most model.MaxForecastDays days.
type Source interface {
	FetchForecast(ctx context.Context, loc model.Location) (model.Forecast, error)
	Name() string
}

// ErrorKind classifies why a source failed.
type ErrorKind string

const (
	// KindConfig means the source cannot run: missing key or coordinates.
	KindConfig ErrorKind = "config"
	// KindTransport means the upstream request did not succeed.
	KindTransport ErrorKind = "transport"
	// KindParse means the upstream answered but nothing usable came out of it.
	KindParse ErrorKind = "parse"
)

var (
	ErrMissingCoordinates = errors.New("latitude/longitude not provided")
	ErrMissingAPIKey      = errors.New("forecast API key not configured")
	ErrSiteChanged        = errors.New("page structure changed or selectors no longer match")
	ErrNoSources          = errors.New("no forecast sources configured")
)

// FetchError is the typed failure of a Source.
type FetchError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the kind of a FetchError anywhere in err's chain.
// Untyped errors are treated as transport failures.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransport
}

// Fallbackable reports whether the chain may try the next source after err.
func Fallbackable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindParse:
		return true
	default:
		return false
	}
}
