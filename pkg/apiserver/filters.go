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

package apiserver

import (
	"bytes"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/golang/glog"

	"applet/pkg/api"
	"applet/pkg/utils"
)

func logStackOnRecover(panicReason interface{}, w http.ResponseWriter) {
	var buffer bytes.Buffer
	buffer.WriteString(fmt.Sprintf("recover from panic situation: - %v\r\n", panicReason))
	for i := 2; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		buffer.WriteString(fmt.Sprintf("    %s:%d\r\n", file, line))
	}
	glog.Errorln(buffer.String())

	w.Header().Set("Content-Type", restful.MIME_JSON)
	w.WriteHeader(http.StatusInternalServerError)
	err := api.NewErrorFor(http.StatusInternalServerError, fmt.Errorf("%s", http.StatusText(http.StatusInternalServerError)))
	_, _ = w.Write([]byte(err.Error()))
}

func logRequestAndResponse(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)

	// Always log error response
	logWithVerbose := glog.V(4)
	if resp.StatusCode() >= http.StatusBadRequest {
		logWithVerbose = glog.V(0)
	}

	logWithVerbose.Infof("%s - \"%s %s %s\" %d %d %dms",
		utils.RemoteIp(req.Request),
		req.Request.Method,
		req.Request.URL,
		req.Request.Proto,
		resp.StatusCode(),
		resp.ContentLength(),
		time.Since(start)/time.Millisecond,
	)
}

// serviceErrorHandler renders router level failures (405, 406, 415) in the JSON envelope.
func serviceErrorHandler(serr restful.ServiceError, req *restful.Request, resp *restful.Response) {
	api.Handle(serr.Code, resp, serr)
}
