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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applet/internal/auth"
	"applet/internal/compress"
	"applet/internal/conf"
	"applet/internal/models"
)

const publisher = "publisher"

type testServer struct {
	*httptest.Server
	secret string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	www := filepath.Join(dir, "www")
	require.NoError(t, os.MkdirAll(filepath.Join(www, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(www, "index.html"), []byte("<h1>repository</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(www, "css", "site.css"), []byte("body{}"), 0o644))

	s, err := New(conf.ServerConfig{Data: filepath.Join(dir, "data"), Www: www})
	require.NoError(t, err)
	require.NoError(t, s.PrepareRun())
	t.Cleanup(func() { s.Close() })

	secret, err := auth.NewAccessFile(s.cfg.Access).AddUser(publisher)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, secret: secret}
}

func packageBytes(t *testing.T, id, version string, assets ...*models.AppletAsset) []byte {
	t.Helper()
	m := &models.AppletManifest{
		Info: models.AppletInfo{
			ID: id, Version: version, Author: "Alice",
			Names: []models.LocaleString{{Language: "en", Value: id}},
		},
		Assets: assets,
	}
	p, err := m.CreatePackage("1.0.0")
	require.NoError(t, err)
	data, err := p.Marshal()
	require.NoError(t, err)
	return data
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, user, password string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) publish(t *testing.T, data []byte) *http.Response {
	return ts.do(t, http.MethodPost, "/pak", data, publisher, ts.secret)
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return data
}

func errorType(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e struct {
		Code      int    `json:"code"`
		ErrorType string `json:"error_type"`
	}
	require.NoError(t, json.Unmarshal(readBody(t, resp), &e))
	assert.Equal(t, resp.StatusCode, e.Code)
	return e.ErrorType
}

func TestPublishAndDownload(t *testing.T) {
	ts := newTestServer(t)
	v1 := packageBytes(t, "demo", "1.0")
	v10 := packageBytes(t, "demo", "1.10")

	resp := ts.publish(t, v1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/pak/demo/1.0", resp.Header.Get("Location"))
	var entry models.PackageEntry
	require.NoError(t, json.Unmarshal(readBody(t, resp), &entry))
	assert.Equal(t, "demo", entry.ID)
	assert.Equal(t, int64(len(v1)), entry.Size)

	require.Equal(t, http.StatusCreated, ts.publish(t, v10).StatusCode)

	resp = ts.publish(t, v1)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorType(t, resp))

	resp = ts.do(t, http.MethodGet, "/pak/demo", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.10", resp.Header.Get("ETag"))
	assert.Equal(t, "/pak/demo/1.10", resp.Header.Get("Location"))
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
	_, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	assert.NoError(t, err)
	assert.Equal(t, v10, readBody(t, resp))

	resp = ts.do(t, http.MethodGet, "/pak/demo/1.0", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0", resp.Header.Get("ETag"))
	assert.Equal(t, "attachment; filename=demo-1.0.pak", resp.Header.Get("Content-Disposition"))
	assert.Equal(t, v1, readBody(t, resp))

	resp = ts.do(t, http.MethodHead, "/pak/demo/1.0", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0", resp.Header.Get("ETag"))
	assert.Empty(t, readBody(t, resp))

	resp = ts.do(t, http.MethodHead, "/pak/demo", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.10", resp.Header.Get("ETag"))

	resp = ts.do(t, http.MethodGet, "/pak/missing", nil, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorType(t, resp))

	resp = ts.do(t, http.MethodGet, "/pak/demo/3.0", nil, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishAuthentication(t *testing.T) {
	ts := newTestServer(t)
	data := packageBytes(t, "demo", "1.0")

	tests := []struct {
		name     string
		user     string
		password string
		body     []byte
		status   int
		errType  string
	}{
		{name: "no credentials", body: data, status: http.StatusUnauthorized, errType: "invalid_grant"},
		{name: "wrong password", user: publisher, password: "nope", body: data, status: http.StatusForbidden, errType: "forbidden"},
		{name: "unknown user", user: "mallory", password: ts.secret, body: data, status: http.StatusForbidden, errType: "forbidden"},
		{name: "malformed body", user: publisher, password: ts.secret, body: []byte("garbage"), status: http.StatusBadRequest, errType: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/pak", tt.body, tt.user, tt.password)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusUnauthorized {
				assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
			}
			assert.Equal(t, tt.errType, errorType(t, resp))
		})
	}

	resp := ts.do(t, http.MethodGet, "/pak/demo", nil, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteRequiresAuthAndIsNotSupported(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.publish(t, packageBytes(t, "demo", "1.0")).StatusCode)

	for _, path := range []string{"/pak/demo", "/pak/demo/1.0"} {
		resp := ts.do(t, http.MethodDelete, path, nil, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

		resp = ts.do(t, http.MethodDelete, path, nil, publisher, "nope")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)

		resp = ts.do(t, http.MethodDelete, path, nil, publisher, ts.secret)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.Equal(t, "internal_server_error", errorType(t, resp))
	}

	resp := ts.do(t, http.MethodGet, "/pak/demo/1.0", nil, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestList(t *testing.T) {
	ts := newTestServer(t)
	for _, p := range [][]string{
		{"org.example.core", "1.0"},
		{"org.example.core", "2.0"},
		{"org.example.ui", "1.5"},
		{"com.other", "3.0"},
	} {
		require.Equal(t, http.StatusCreated, ts.publish(t, packageBytes(t, p[0], p[1])).StatusCode)
	}

	var page struct {
		Items      []models.PackageEntry `json:"items"`
		TotalItems int                   `json:"totalItems"`
		TotalCount int64                 `json:"totalCount"`
	}
	resp := ts.do(t, http.MethodGet, "/pak?id=org.example.*&_count=2", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3", resp.Header.Get("X-Total-Count"))
	require.NoError(t, json.Unmarshal(readBody(t, resp), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, "2.0", page.Items[0].Version)
	assert.Equal(t, "1.5", page.Items[1].Version)

	resp = ts.do(t, http.MethodGet, "/pak?id=com.other&id=org.example.ui", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-Total-Count"))

	resp = ts.do(t, http.MethodGet, "/pak", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4", resp.Header.Get("X-Total-Count"))
}

func TestAsset(t *testing.T) {
	ts := newTestServer(t)
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	packed, err := compress.Compress(svg)
	require.NoError(t, err)

	data := packageBytes(t, "demo", "1.0",
		&models.AppletAsset{Name: "img/logo.svg", MimeType: "image/svg+xml", Content: models.BinaryContent(packed)},
		&models.AppletAsset{Name: "docs/readme.txt", MimeType: "text/plain", Content: models.TextContent("read me")},
		&models.AppletAsset{Name: "readme", Content: models.VirtualContent{Target: "docs/readme.txt"}},
	)
	require.Equal(t, http.StatusCreated, ts.publish(t, data).StatusCode)
	require.Equal(t, http.StatusCreated, ts.publish(t, packageBytes(t, "demo", "2.0")).StatusCode)

	resp := ts.do(t, http.MethodGet, "/asset/demo/img/logo.svg?version=1.0", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, svg, readBody(t, resp))

	resp = ts.do(t, http.MethodGet, "/asset/demo/readme?version=1.0", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "read me", string(readBody(t, resp)))

	tests := []struct {
		path   string
		status int
	}{
		{"/asset/demo/img/logo.svg", http.StatusNotFound},
		{"/asset/demo/missing.txt?version=1.0", http.StatusNotFound},
		{"/asset/demo/img/logo.svg?version=9.9", http.StatusNotFound},
		{"/asset/nope/img/logo.svg", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp := ts.do(t, http.MethodGet, tt.path, nil, "", "")
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}

func TestStaticContent(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<h1>repository</h1>", string(readBody(t, resp)))

	resp = ts.do(t, http.MethodGet, "/css/site.css", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")

	for _, path := range []string{"/missing.html", "/css"} {
		resp = ts.do(t, http.MethodGet, path, nil, "", "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.Equal(t, "internal_server_error", errorType(t, resp))
	}
}

func TestDocsAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/pak", nil, "", "")

	resp := ts.do(t, http.MethodGet, APIDocsPath, nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(readBody(t, resp)), "Applet Repository")

	resp = ts.do(t, http.MethodGet, "/metrics", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(readBody(t, resp)), "applet_repo_http_requests_total")
}
