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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fluxcd/pkg/lockedfile"
	"github.com/golang/glog"

	"applet/internal/constants"
	"applet/internal/models"
	"applet/pkg/utils"
)

// Cache is the local on-disk package cache laid out as <dir>/<id>/<version>.pak.
type Cache struct {
	Dir string
}

func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) Name() string {
	return "cache:" + c.Dir
}

func (c *Cache) path(id, version string) (string, error) {
	return securejoin.SecureJoin(c.Dir, filepath.Join(id, version+constants.PackageExtension))
}

func (c *Cache) Get(_ context.Context, id, version string) (*models.AppletPackage, error) {
	p, err := c.path(id, version)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s %s in %s: %w", id, version, c.Dir, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	pkg, err := models.UnmarshalPackage(data)
	if err != nil {
		return nil, fmt.Errorf("cached package %s: %w", p, err)
	}
	return pkg, nil
}

// Versions lists the cached versions of id in directory order.
func (c *Cache) Versions(id string) ([]string, error) {
	dir, err := securejoin.SecureJoin(c.Dir, id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, constants.PackageExtension) {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, constants.PackageExtension))
	}
	return versions, nil
}

func (c *Cache) LatestVersion(_ context.Context, id string) (string, error) {
	versions, err := c.Versions(id)
	if err != nil {
		return "", err
	}
	i := utils.MaxVersion(versions)
	if i < 0 {
		return "", fmt.Errorf("%s in %s: %w", id, c.Dir, models.ErrNotFound)
	}
	return versions[i], nil
}

// Install writes the artifact into the cache, replacing any existing copy.
func (c *Cache) Install(_ context.Context, a models.Artifact) error {
	meta := a.Metadata()
	p, err := c.path(meta.ID, meta.Version)
	if err != nil {
		return err
	}
	data, err := a.Marshal()
	if err != nil {
		return err
	}
	if err := utils.CheckParentDir(p); err != nil {
		return err
	}

	unlock, err := lockedfile.MutexAt(p + ".lock").Lock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", p, err)
	}
	defer unlock()

	if _, _, err := utils.AtomicWriteFile(p, bytes.NewReader(data), 0o644); err != nil {
		return err
	}
	glog.Infof("installed %s %s to %s", meta.ID, meta.Version, p)
	return nil
}
