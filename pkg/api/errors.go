// Copyright 2022 bytetrade
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"net/http"
	"runtime"

	"github.com/emicklei/go-restful/v3"
	"github.com/golang/glog"

	"applet/internal/models"
	"applet/pkg/utils"
)

type ErrorType = string

const (
	ErrorInternalServerError ErrorType = "internal_server_error"
	ErrorInvalidGrant        ErrorType = "invalid_grant"
	ErrorForbidden           ErrorType = "forbidden"
	ErrorBadRequest          ErrorType = "bad_request"
	ErrorNotFound            ErrorType = "not_found"
	ErrorConflict            ErrorType = "conflict"
	ErrorUnknown             ErrorType = "unknown_error"
)

var ErrUnauthorized = errors.New("authentication required")

func HandleInternalError(response *restful.Response, err error) {
	Handle(http.StatusInternalServerError, response, err)
}

func HandleUnauthorized(response *restful.Response, err error) {
	response.Header().Set("WWW-Authenticate", `Basic realm="applet"`)
	Handle(http.StatusUnauthorized, response, err)
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var serr restful.ServiceError
	switch {
	case errors.As(err, &serr):
		return serr.Code
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrSecurity):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, models.ErrMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func HandleError(response *restful.Response, err error) {
	Handle(StatusFor(err), response, err)
}

func Handle(statusCode int, resp *restful.Response, err error) {
	_, fn, line, _ := runtime.Caller(2)
	glog.Errorf("%s:%d %v", fn, line, err)

	var t Error
	if errors.As(err, &t) {
		_ = resp.WriteHeaderAndJson(statusCode, t, restful.MIME_JSON)
		return
	}

	_ = resp.WriteHeaderAndJson(statusCode, NewErrorFor(statusCode, err), restful.MIME_JSON)
}

func NewErrorFor(statusCode int, err error) Error {
	var errType ErrorType
	switch statusCode {
	case http.StatusBadRequest:
		errType = ErrorBadRequest
	case http.StatusUnauthorized:
		errType = ErrorInvalidGrant
	case http.StatusForbidden:
		errType = ErrorForbidden
	case http.StatusNotFound:
		errType = ErrorNotFound
	case http.StatusConflict:
		errType = ErrorConflict
	case http.StatusInternalServerError:
		errType = ErrorInternalServerError
	default:
		errType = ErrorUnknown
	}
	return Error{
		Code:      statusCode,
		Msg:       err.Error(),
		ErrorType: errType,
	}
}

type Error struct {
	Code             int    `json:"code"`
	Msg              string `json:"message"`
	ErrorType        string `json:"error_type,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e Error) Error() string {
	return utils.PrettyJSON(e)
}
