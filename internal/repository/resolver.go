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
	"errors"
	"fmt"

	"github.com/golang/glog"

	"applet/internal/constants"
	"applet/internal/models"
	"applet/pkg/utils"
)

// Source is somewhere packages can be fetched from.
type Source interface {
	Name() string
	Get(ctx context.Context, id, version string) (*models.AppletPackage, error)
	LatestVersion(ctx context.Context, id string) (string, error)
}

type Lookup interface {
	Lookup(ctx context.Context, id, version string) (*models.AppletPackage, error)
}

type Installer interface {
	Install(ctx context.Context, a models.Artifact) error
}

type Publisher interface {
	Publish(ctx context.Context, serverURL string, a models.Artifact) error
}

// Resolver searches the local cache first, then the remotes in configured order.
type Resolver struct {
	cache   *Cache
	sources []Source
	auth    func(serverURL string) *Remote
}

// NewResolver builds a resolver over cache and remotes. cache may be nil.
func NewResolver(cache *Cache, remotes ...Source) *Resolver {
	r := &Resolver{cache: cache}
	if cache != nil {
		r.sources = append(r.sources, cache)
	}
	r.sources = append(r.sources, remotes...)
	return r
}

// WithCredentials sets how publish targets are reached.
func (r *Resolver) WithCredentials(user, password string) *Resolver {
	r.auth = func(serverURL string) *Remote {
		return NewRemote(serverURL, user, password)
	}
	return r
}

// Lookup finds id at version. An empty version or "latest" selects the highest version
// across all sources; on a tie the earlier source wins.
func (r *Resolver) Lookup(ctx context.Context, id, version string) (*models.AppletPackage, error) {
	if version == "" || version == constants.LatestVersion {
		return r.latest(ctx, id)
	}
	for _, s := range r.sources {
		pkg, err := s.Get(ctx, id, version)
		if err == nil {
			glog.V(2).Infof("resolved %s %s from %s", id, version, s.Name())
			return pkg, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			glog.Warningf("lookup %s %s in %s err:%s", id, version, s.Name(), err)
		}
	}
	return nil, fmt.Errorf("%s %s: %w", id, version, models.ErrNotFound)
}

func (r *Resolver) latest(ctx context.Context, id string) (*models.AppletPackage, error) {
	var (
		best    Source
		version string
	)
	for _, s := range r.sources {
		v, err := s.LatestVersion(ctx, id)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				glog.Warningf("latest %s in %s err:%s", id, s.Name(), err)
			}
			continue
		}
		if best == nil || utils.NeedUpgrade(version, v, false) {
			best, version = s, v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s latest: %w", id, models.ErrNotFound)
	}
	glog.V(2).Infof("resolved %s latest %s from %s", id, version, best.Name())
	return best.Get(ctx, id, version)
}

func (r *Resolver) Install(ctx context.Context, a models.Artifact) error {
	if r.cache == nil {
		return fmt.Errorf("no local cache configured")
	}
	return r.cache.Install(ctx, a)
}

func (r *Resolver) Publish(ctx context.Context, serverURL string, a models.Artifact) error {
	remote := NewRemote(serverURL, "", "")
	if r.auth != nil {
		remote = r.auth(serverURL)
	}
	entry, err := remote.Publish(ctx, a)
	if err != nil {
		return err
	}
	glog.Infof("published %s %s to %s digest:%s", entry.ID, entry.Version, serverURL, entry.Digest)
	return nil
}
