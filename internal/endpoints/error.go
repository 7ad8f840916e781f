package endpoints

import (
	"errors"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	INVALID_PARAMETERS  = iota + 103 // 103 - Invalid query or URL parameters
	INVALID_TIME_RANGE               // 104 - Start time is after end time
	REQUEST_CANCELLED                // 105 - Request was cancelled by client or server timeout
	COLLECTOR_DEGRADED               // 106 - Collection is failing to authenticate
	STORE_UNAVAILABLE                // 107 - The sample store could not be read
)

var (
	ErrInvalidParameters = errors.New("invalid parameter; limit, start, end and window must be integers and order must be asc or desc")
	ErrInvalidTimeRange  = errors.New("start timestamp cannot be after end timestamp")
	ErrRequestCancelled  = errors.New("request cancelled by client or server timeout")
	ErrCollectorDegraded = errors.New("collector is degraded: repeated authentication failures")
	ErrStoreUnavailable  = errors.New("sample store unavailable")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrInvalidTimeRange):
		return INVALID_TIME_RANGE
	case errors.Is(err, ErrRequestCancelled):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrCollectorDegraded):
		return COLLECTOR_DEGRADED
	case errors.Is(err, ErrStoreUnavailable):
		return STORE_UNAVAILABLE
	default:
		return API_FAILURE // Default for any unhandled error
	}
}
