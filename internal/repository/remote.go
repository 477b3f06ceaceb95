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

package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"applet/internal/constants"
	"applet/internal/models"
)

const defaultTimeout = 60 * time.Second

// Remote is a repository server reached over HTTP.
type Remote struct {
	BaseURL string
	client  *resty.Client
}

func NewRemote(baseURL, user, password string) *Remote {
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetBaseURL(strings.TrimRight(baseURL, "/"))
	if user != "" {
		client.SetBasicAuth(user, password)
	}
	return &Remote{BaseURL: baseURL, client: client}
}

func (r *Remote) Name() string {
	return r.BaseURL
}

func (r *Remote) Get(ctx context.Context, id, version string) (*models.AppletPackage, error) {
	req := r.client.R().SetContext(ctx).SetPathParam("id", id)
	url := "/pak/{id}"
	if version != "" && version != constants.LatestVersion {
		req.SetPathParam("version", version)
		url = "/pak/{id}/{version}"
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s from %s: %w", id, r.BaseURL, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s on %s: %w", id, version, r.BaseURL, models.ErrNotFound)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("get %s from %s: status %d: %s", id, r.BaseURL, resp.StatusCode(), resp.String())
	}
	return models.UnmarshalPackage(resp.Body())
}

// LatestVersion asks the server for the latest version without downloading it.
func (r *Remote) LatestVersion(ctx context.Context, id string) (string, error) {
	resp, err := r.client.R().SetContext(ctx).SetPathParam("id", id).Head("/pak/{id}")
	if err != nil {
		return "", fmt.Errorf("head %s on %s: %w", id, r.BaseURL, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", fmt.Errorf("%s on %s: %w", id, r.BaseURL, models.ErrNotFound)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("head %s on %s: status %d", id, r.BaseURL, resp.StatusCode())
	}
	etag := strings.Trim(resp.Header().Get(constants.HeaderETag), `"`)
	if etag == "" {
		return "", fmt.Errorf("head %s on %s: no version in response", id, r.BaseURL)
	}
	return etag, nil
}

func (r *Remote) Publish(ctx context.Context, a models.Artifact) (*models.PackageEntry, error) {
	data, err := a.Marshal()
	if err != nil {
		return nil, err
	}
	entry := &models.PackageEntry{}
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		SetResult(entry).
		Post("/pak")
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", r.BaseURL, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("publish to %s: status %d: %s", r.BaseURL, resp.StatusCode(), resp.String())
	}
	return entry, nil
}
