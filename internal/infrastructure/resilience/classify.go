package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

// StatusError is a non-2xx reply from an upstream HTTP service.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, e.Body)
}

var (
	cancelled = ErrorClassification{}
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{RecordFailure: true}
)

// RetryableStatus reports the statuses a provider may answer differently on
// a later call.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return code >= http.StatusInternalServerError && code != http.StatusNotImplemented
	}
}

// HTTPClassifier treats network errors, open breakers and StatusErrors whose
// code passes retryable as transient. Other StatusErrors are the caller's
// fault and do not count against the breaker.
func HTTPClassifier(retryable func(code int) bool) ErrorClassifier {
	if retryable == nil {
		retryable = RetryableStatus
	}
	return func(err error) ErrorClassification {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return cancelled
		}
		if IsCircuitOpen(err) {
			return transient
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if retryable(statusErr.StatusCode) {
				return transient
			}
			return ErrorClassification{}
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return transient
		}
		return permanent
	}
}

// ServiceError tags err with kind and, when classify says a later call could
// succeed, with domain.ErrTemporary too.
func ServiceError(kind error, operation string, err error, classify ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if classify == nil {
		classify = defaultClassifier
	}
	if classify(err).Retryable || IsCircuitOpen(err) {
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(kind, operation, err)
}
