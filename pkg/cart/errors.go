package cart

import "errors"

var (
	// ErrSourceUnavailable is returned by catalog sources that cannot be reached.
	ErrSourceUnavailable = errors.New("catalog source unavailable")
	// ErrCatalogEmpty is returned when the source answers with zero products.
	// The controller treats it exactly like an outage.
	ErrCatalogEmpty = errors.New("catalog is empty")
	// ErrSinkUnavailable is returned by order sinks that failed to persist an order.
	ErrSinkUnavailable = errors.New("order sink unavailable")
	// ErrValidationFailed wraps the field errors of an invalid customer form.
	ErrValidationFailed = errors.New("customer details are invalid")
)
