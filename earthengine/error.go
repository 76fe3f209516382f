package earthengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	ErrNoProject  = errors.New("earthengine: project is required")
	ErrEmptyMapID = errors.New("earthengine: empty map id")
)

// 请求失败时解码出的google.rpc.Status
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	err        error
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.HTTPStatus)
	}
	return fmt.Sprintf("earthengine: %s (%d): %s", status, e.HTTPStatus, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// 配额不足或服务暂不可用类错误，仅用于上报，不做重试
func (e *APIError) Temporary() bool {
	switch e.HTTPStatus {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.Status == "RESOURCE_EXHAUSTED" || e.Status == "UNAVAILABLE" || e.Status == "DEADLINE_EXCEEDED"
}

// 非googleapi错误返回nil
func fromGoogleAPI(err error) *APIError {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return nil
	}
	apiErr := parseAPIError(gErr.Code, []byte(gErr.Body))
	if apiErr.Message == "" {
		apiErr.Message = gErr.Message
	}
	apiErr.err = gErr
	return apiErr
}

func parseAPIError(httpStatus int, body []byte) *APIError {
	var wrapper struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil {
		wrapper.Error.HTTPStatus = httpStatus
		return wrapper.Error
	}
	return &APIError{
		HTTPStatus: httpStatus,
		Code:       httpStatus,
		Message:    strings.TrimSpace(string(body)),
	}
}
