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

package v1

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"applet/internal/auth"
	"applet/internal/models"
	"applet/internal/store"
	"applet/pkg/api"
)

const (
	PackageRootPath = "/pak"
	AssetRootPath   = "/asset"

	ParamID      = "id"
	ParamVersion = "version"
	ParamPath    = "path"
	ParamContent = "content"
)

var (
	PackageTags = []string{"packages"}
	AssetTags   = []string{"assets"}
	ContentTags = []string{"content"}
)

func AddToContainer(c *restful.Container, s *store.Store, access *auth.AccessFile, notifier Notifier, wwwDir string) error {
	handler := newHandler(s, access, notifier, wwwDir)

	ws := new(restful.WebService)
	ws.Path(PackageRootPath).
		Produces(restful.MIME_JSON, restful.MIME_OCTET)

	ws.Route(ws.GET("").
		To(handler.list).
		Doc("query package metadata").
		Metadata(restfulspec.KeyOpenAPITags, PackageTags).
		Param(ws.QueryParameter("id", "package id, trailing * matches a prefix").AllowMultiple(true)).
		Param(ws.QueryParameter("author", "author").AllowMultiple(true)).
		Param(ws.QueryParameter("name", "display name").AllowMultiple(true)).
		Param(ws.QueryParameter("version", "version").AllowMultiple(true)).
		Param(ws.QueryParameter("publicKeyToken", "publisher thumbprint").AllowMultiple(true)).
		Param(ws.QueryParameter("_offset", "offset")).
		Param(ws.QueryParameter("_count", "count")).
		Returns(http.StatusOK, "success to query packages", models.ListResult{}))

	ws.Route(ws.POST("").
		To(handler.publish).
		Filter(handler.requireAuth).
		Doc("publish a package or solution").
		Metadata(restfulspec.KeyOpenAPITags, PackageTags).
		Consumes(restful.MIME_OCTET, "application/x-applet", "*/*").
		Returns(http.StatusCreated, "package published", models.PackageEntry{}).
		Returns(http.StatusConflict, "package version already exists", api.Error{}))

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		ws.Route(ws.Method(method).Path("/{"+ParamID+"}").
			To(handler.latest).
			Doc("download the latest version of a package").
			Metadata(restfulspec.KeyOpenAPITags, PackageTags).
			Param(ws.PathParameter(ParamID, "package id")).
			Returns(http.StatusOK, "package content", nil).
			Returns(http.StatusNotFound, "package not found", api.Error{}))

		ws.Route(ws.Method(method).Path("/{"+ParamID+"}/{"+ParamVersion+"}").
			To(handler.exact).
			Doc("download one version of a package").
			Metadata(restfulspec.KeyOpenAPITags, PackageTags).
			Param(ws.PathParameter(ParamID, "package id")).
			Param(ws.PathParameter(ParamVersion, "package version")).
			Returns(http.StatusOK, "package content", nil).
			Returns(http.StatusNotFound, "package not found", api.Error{}))
	}

	ws.Route(ws.DELETE("/{"+ParamID+"}").
		To(handler.remove).
		Filter(handler.requireAuth).
		Doc("delete a package, not supported").
		Metadata(restfulspec.KeyOpenAPITags, PackageTags).
		Param(ws.PathParameter(ParamID, "package id")))

	ws.Route(ws.DELETE("/{"+ParamID+"}/{"+ParamVersion+"}").
		To(handler.remove).
		Filter(handler.requireAuth).
		Doc("delete a package version, not supported").
		Metadata(restfulspec.KeyOpenAPITags, PackageTags).
		Param(ws.PathParameter(ParamID, "package id")).
		Param(ws.PathParameter(ParamVersion, "package version")))

	c.Add(ws)

	assets := new(restful.WebService)
	assets.Path(AssetRootPath).Produces("*/*")
	assets.Route(assets.GET("/{"+ParamID+"}/{"+ParamPath+":*}").
		To(handler.asset).
		Doc("render one asset of a package").
		Metadata(restfulspec.KeyOpenAPITags, AssetTags).
		Param(assets.PathParameter(ParamID, "package id")).
		Param(assets.PathParameter(ParamPath, "asset path")).
		Param(assets.QueryParameter(ParamVersion, "package version, latest when empty")))
	c.Add(assets)

	content := new(restful.WebService)
	content.Path("/").Produces("*/*")
	content.Route(content.GET("/").
		To(handler.static).
		Doc("serve the repository index page").
		Metadata(restfulspec.KeyOpenAPITags, ContentTags))
	content.Route(content.GET("/{"+ParamContent+":*}").
		To(handler.static).
		Doc("serve static repository content").
		Metadata(restfulspec.KeyOpenAPITags, ContentTags).
		Param(content.PathParameter(ParamContent, "file path")))
	c.Add(content)

	return nil
}
