package endpoints

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status    bool        `json:"status"`
	Value     interface{} `json:"value"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	payload, _ := json.Marshal(body)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	w.Write(payload)
}

func (res APIResponse) WriteErrorResponse(w http.ResponseWriter, err error) {
	res.WriteErrorResponseWithStatusCode(w, err, http.StatusInternalServerError)
}

func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, StatusCode int) {
	res.Status = false
	res.Error = err.Error()
	if StatusCode == http.StatusUnauthorized {
		res.ErrorCode = API_UNAUTHORIZED
	} else {
		res.ErrorCode = GetErrorCode(err)
	}
	writeJSON(w, StatusCode, res)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, result interface{}) {
	res.WriteResultResponseWithStatusCode(w, result, http.StatusOK)
}

// WriteResultResponseWithStatusCode writes a successful envelope with a
// non-200 status, used by health when the collector is degraded.
func (res APIResponse) WriteResultResponseWithStatusCode(w http.ResponseWriter, result interface{}, StatusCode int) {
	res.Status = true
	res.Value = result
	res.ErrorCode = GetErrorCode(nil)
	writeJSON(w, StatusCode, res)
}
