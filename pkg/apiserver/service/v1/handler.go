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
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/emicklei/go-restful/v3"
	"github.com/golang/glog"

	"applet/internal/auth"
	"applet/internal/constants"
	"applet/internal/models"
	"applet/internal/packer"
	"applet/internal/store"
	"applet/pkg/api"
	"applet/pkg/apiserver/metrics"
	"applet/pkg/utils"
)

// Notifier is told about every package the store accepts.
type Notifier interface {
	PackagePublished(e *models.PackageEntry) error
}

type Handler struct {
	store    *store.Store
	access   *auth.AccessFile
	notifier Notifier
	wwwDir   string
}

func newHandler(s *store.Store, access *auth.AccessFile, notifier Notifier, wwwDir string) *Handler {
	return &Handler{
		store:    s,
		access:   access,
		notifier: notifier,
		wwwDir:   wwwDir,
	}
}

// requireAuth checks basic credentials against the access file.
// Missing credentials are 401, rejected ones 403.
func (h *Handler) requireAuth(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	user, password, ok := req.Request.BasicAuth()
	if !ok {
		api.HandleUnauthorized(resp, api.ErrUnauthorized)
		return
	}
	if h.access == nil {
		api.HandleError(resp, fmt.Errorf("no access file configured: %w", models.ErrSecurity))
		return
	}

	valid, err := h.access.Authenticate(user, password)
	if err != nil {
		api.HandleInternalError(resp, err)
		return
	}
	if !valid {
		api.HandleError(resp, fmt.Errorf("user %s rejected: %w", user, models.ErrSecurity))
		return
	}
	chain.ProcessFilter(req, resp)
}

func (h *Handler) list(req *restful.Request, resp *restful.Response) {
	q := store.Query{Filters: make(map[string][]string)}
	for key, values := range req.Request.URL.Query() {
		if store.IsQueryField(key) {
			q.Filters[key] = values
		}
	}
	q.Offset, q.Count = utils.VerifyOffsetAndCount(req.QueryParameter(constants.QueryOffset), req.QueryParameter(constants.QueryCount))

	entries, total, err := h.store.Query(q)
	if err != nil {
		api.HandleError(resp, err)
		return
	}

	resp.Header().Set(constants.HeaderTotalCount, fmt.Sprint(total))
	_ = resp.WriteEntity(models.NewListResultWithCount(entries, int64(total), q.Offset))
}

func (h *Handler) publish(req *restful.Request, resp *restful.Response) {
	data, err := io.ReadAll(req.Request.Body)
	if err != nil {
		api.HandleError(resp, fmt.Errorf("%w: %v", models.ErrMalformed, err))
		return
	}

	entry, err := h.store.Put(req.Request.Context(), data)
	metrics.RecordPublish(err)
	if err != nil {
		api.HandleError(resp, err)
		return
	}

	glog.Infof("published %s %s from %s", entry.ID, entry.Version, utils.RemoteIp(req.Request))
	if h.notifier != nil {
		if err := h.notifier.PackagePublished(entry); err != nil {
			glog.Warningf("notify %s %s err:%s", entry.ID, entry.Version, err)
		}
	}
	resp.Header().Set(constants.HeaderLocation, packageLocation(entry))
	_ = resp.WriteHeaderAndJson(http.StatusCreated, entry, restful.MIME_JSON)
}

func (h *Handler) latest(req *restful.Request, resp *restful.Response) {
	entry, err := h.store.Latest(req.PathParameter(ParamID))
	if err != nil {
		api.HandleError(resp, err)
		return
	}
	h.sendPackage(req, resp, entry, false)
}

func (h *Handler) exact(req *restful.Request, resp *restful.Response) {
	entry, err := h.store.Get(req.PathParameter(ParamID), req.PathParameter(ParamVersion))
	if err != nil {
		api.HandleError(resp, err)
		return
	}
	h.sendPackage(req, resp, entry, true)
}

func packageLocation(e *models.PackageEntry) string {
	return fmt.Sprintf("%s/%s/%s", PackageRootPath, e.ID, e.Version)
}

func (h *Handler) sendPackage(req *restful.Request, resp *restful.Response, e *models.PackageEntry, attachment bool) {
	header := resp.Header()
	header.Set(constants.HeaderETag, e.Version)
	header.Set(constants.HeaderLocation, packageLocation(e))
	header.Set(constants.HeaderLastModified, time.Unix(e.TimeStamp, 0).UTC().Format(http.TimeFormat))
	if attachment {
		header.Set(constants.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s-%s%s", e.ID, e.Version, constants.PackageExtension))
	}

	if req.Request.Method == http.MethodHead {
		header.Set("Content-Type", restful.MIME_OCTET)
		header.Set("Content-Length", fmt.Sprint(e.Size))
		resp.WriteHeader(http.StatusOK)
		return
	}

	data, err := h.store.ReadBlob(e)
	if err != nil {
		api.HandleError(resp, err)
		return
	}

	kind := "latest"
	if attachment {
		kind = "exact"
	}
	metrics.RecordDownload(kind)

	header.Set("Content-Type", restful.MIME_OCTET)
	header.Set("Content-Length", fmt.Sprint(len(data)))
	resp.WriteHeader(http.StatusOK)
	_, _ = resp.Write(data)
}

func (h *Handler) remove(req *restful.Request, resp *restful.Response) {
	err := h.store.Delete(req.PathParameter(ParamID), req.PathParameter(ParamVersion))
	api.HandleInternalError(resp, err)
}

func (h *Handler) asset(req *restful.Request, resp *restful.Response) {
	id := req.PathParameter(ParamID)
	version := req.QueryParameter(ParamVersion)

	var entry *models.PackageEntry
	var err error
	if version == "" {
		entry, err = h.store.Latest(id)
	} else {
		entry, err = h.store.Get(id, version)
	}
	if err != nil {
		api.HandleError(resp, err)
		return
	}

	data, err := h.store.ReadBlob(entry)
	if err != nil {
		api.HandleError(resp, err)
		return
	}
	sol, err := models.Unmarshal(data)
	if err != nil {
		api.HandleInternalError(resp, err)
		return
	}
	manifest, err := sol.Unpack()
	if err != nil {
		api.HandleInternalError(resp, err)
		return
	}

	name := req.PathParameter(ParamPath)
	a, content, err := manifest.RenderAsset(name)
	if err != nil {
		api.HandleError(resp, err)
		return
	}

	contentType := a.MimeType
	if contentType == "" {
		contentType = packer.MimeType(name)
	}
	resp.Header().Set("Content-Type", contentType)
	resp.Header().Set(constants.HeaderETag, entry.Version)
	resp.WriteHeader(http.StatusOK)
	_, _ = resp.Write(content)
}

// static serves files below the www directory. Every failure maps to 500.
func (h *Handler) static(req *restful.Request, resp *restful.Response) {
	name := req.PathParameter(ParamContent)
	if name == "" {
		name = constants.DefaultIndex
	}

	if !utils.ExistDir(h.wwwDir) {
		api.HandleInternalError(resp, fmt.Errorf("content directory %q not found", h.wwwDir))
		return
	}
	p, err := securejoin.SecureJoin(h.wwwDir, name)
	if err != nil {
		api.HandleInternalError(resp, err)
		return
	}
	data, err := os.ReadFile(p)
	if err != nil {
		api.HandleInternalError(resp, err)
		return
	}

	resp.Header().Set("Content-Type", packer.MimeType(p))
	resp.WriteHeader(http.StatusOK)
	_, _ = resp.Write(data)
}
