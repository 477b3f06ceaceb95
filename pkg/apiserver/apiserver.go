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
	"context"
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/golang/glog"

	"applet/internal/auth"
	"applet/internal/conf"
	"applet/internal/constants"
	"applet/internal/notify"
	"applet/internal/store"
	"applet/pkg/apiserver/metrics"
	servicev1 "applet/pkg/apiserver/service/v1"
)

const APIDocsPath = "/apidocs.json"

type APIServer struct {
	Server *http.Server

	cfg conf.ServerConfig

	// RESTful Server
	container *restful.Container
	store     *store.Store
	sender    *notify.Sender
}

func New(cfg conf.ServerConfig) (*APIServer, error) {
	if cfg.Listen == "" {
		cfg.Listen = constants.APIServerListenAddress
	}
	if cfg.Data == "" {
		cfg.Data = constants.DataPath
	}
	cfg.Access = cfg.AccessFile()

	as := &APIServer{cfg: cfg}

	server := &http.Server{
		Addr: cfg.Listen,
	}

	as.Server = server
	return as, nil
}

func (s *APIServer) PrepareRun() error {
	st, err := store.Open(s.cfg.Data)
	if err != nil {
		return err
	}
	s.store = st

	sender, err := notify.NewSender(s.cfg.Notify)
	if err != nil {
		_ = s.Close()
		return err
	}
	s.sender = sender

	s.container = restful.NewContainer()
	s.container.Filter(logRequestAndResponse)
	s.container.Filter(metrics.Filter)
	s.container.Router(restful.CurlyRouter{})
	s.container.RecoverHandler(func(panicReason interface{}, httpWriter http.ResponseWriter) {
		logStackOnRecover(panicReason, httpWriter)
	})
	s.container.ServiceErrorHandler(serviceErrorHandler)

	s.installModuleAPI()
	s.installMetrics()
	s.installAPIDocs()

	for _, ws := range s.container.RegisteredWebServices() {
		glog.Infof("registered module: %s", ws.RootPath())
	}

	s.Server.Handler = s.container
	return nil
}

// Handler returns the prepared container, for embedding and tests.
func (s *APIServer) Handler() http.Handler {
	return s.container
}

func (s *APIServer) Run() error {
	glog.Infof("repository serving %s on %s", s.cfg.Data, s.cfg.Listen)
	return s.Server.ListenAndServe()
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *APIServer) Close() error {
	if s.sender != nil {
		s.sender.Close()
		s.sender = nil
	}
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

func (s *APIServer) installAPIDocs() {
	config := restfulspec.Config{
		WebServices:                   s.container.RegisteredWebServices(), // you control what services are visible
		APIPath:                       APIDocsPath,
		PostBuildSwaggerObjectHandler: enrichSwaggerObject}
	s.container.Add(restfulspec.NewOpenAPIService(config))

	cors := restful.CrossOriginResourceSharing{
		AllowedHeaders: []string{"Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{constants.HeaderETag, constants.HeaderLocation, constants.HeaderLastModified,
			constants.HeaderContentDisposition, constants.HeaderTotalCount},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete},
		CookiesAllowed: false,
		Container:      s.container}
	s.container.Filter(cors.Filter)
}

func (s *APIServer) installMetrics() {
	handler := metrics.Handler()
	ws := new(restful.WebService)
	ws.Path("/metrics").Produces("*/*")
	ws.Route(ws.GET("").
		To(func(req *restful.Request, resp *restful.Response) {
			handler.ServeHTTP(resp, req.Request)
		}).
		Doc("prometheus metrics"))
	s.container.Add(ws)
}

func (s *APIServer) installModuleAPI() {
	var access *auth.AccessFile
	if s.cfg.Access != "" {
		access = auth.NewAccessFile(s.cfg.Access)
	}
	_ = servicev1.AddToContainer(s.container, s.store, access, s.sender, s.cfg.Www)
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Applet Repository",
			Description: "Package repository for signed applets and solutions",
			Contact: &spec.ContactInfo{
				ContactInfoProps: spec.ContactInfoProps{
					Name:  "bytetrade",
					Email: "dev@bytetrade.io",
					URL:   "http://bytetrade.io",
				},
			},
			License: &spec.License{
				LicenseProps: spec.LicenseProps{
					Name: "Apache License 2.0",
					URL:  "http://www.apache.org/licenses/LICENSE-2.0",
				},
			},
			Version: constants.ToolVersion,
		},
	}
	swo.Tags = []spec.Tag{{TagProps: spec.TagProps{
		Name:        "packages",
		Description: "Publish, query and download applet packages"}}}
	swo.Schemes = []string{"http", "https"}
}
