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

package builder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"applet/internal/constants"
	"applet/internal/models"
	"applet/internal/packer"
	"applet/internal/repository"
	"applet/internal/signer"
	"applet/pkg/utils"
)

type Options struct {
	Delivery
	Source   string
	Optimize bool
	Version  string
}

type Builder struct {
	Deliverer
	registry *packer.Registry
	signer   *signer.Signer
}

// New returns a builder. s may be nil for unsigned packages.
func New(registry *packer.Registry, s *signer.Signer, installer repository.Installer, publisher repository.Publisher) *Builder {
	return &Builder{
		Deliverer: Deliverer{Installer: installer, Publisher: publisher},
		registry:  registry,
		signer:    s,
	}
}

var archiveSuffixes = []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz"}

func isArchive(p string) bool {
	lower := strings.ToLower(p)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// sourceDir resolves the source option to the directory holding manifest.xml.
func sourceDir(source string) (dir string, cleanup func(), err error) {
	cleanup = func() {}
	fi, err := os.Stat(source)
	if err != nil {
		return "", cleanup, fmt.Errorf("source %s: %w", source, err)
	}

	switch {
	case fi.IsDir():
		dir = source
	case strings.EqualFold(filepath.Base(source), constants.ManifestFileName):
		dir = filepath.Dir(source)
	case isArchive(source):
		tmp, err := os.MkdirTemp("", "applet-src-")
		if err != nil {
			return "", cleanup, err
		}
		cleanup = func() { os.RemoveAll(tmp) }
		if err := utils.UnArchive(source, tmp); err != nil {
			cleanup()
			return "", func() {}, fmt.Errorf("unpack %s: %w", source, err)
		}
		dir = tmp
		if !utils.PathExists(filepath.Join(tmp, constants.ManifestFileName)) {
			entries, _ := os.ReadDir(tmp)
			if len(entries) == 1 && entries[0].IsDir() {
				dir = filepath.Join(tmp, entries[0].Name())
			}
		}
	default:
		return "", cleanup, fmt.Errorf("source %s is not a directory, manifest or archive", source)
	}

	if !utils.PathExists(filepath.Join(dir, constants.ManifestFileName)) {
		cleanup()
		return "", func() {}, fmt.Errorf("%s: %s not found: %w", source, constants.ManifestFileName, models.ErrNotFound)
	}
	return dir, cleanup, nil
}

// Build packs the source tree into a package and delivers it.
func (b *Builder) Build(ctx context.Context, opts Options) (*models.AppletPackage, error) {
	dir, cleanup, err := sourceDir(opts.Source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	m, err := models.ReadManifestFile(filepath.Join(dir, constants.ManifestFileName))
	if err != nil {
		return nil, err
	}
	if err := b.packTree(dir, m, opts); err != nil {
		return nil, err
	}
	if opts.Version != "" {
		m.Info.Version = opts.Version
	}

	pkg, err := m.CreatePackage(constants.ToolVersion)
	if err != nil {
		return nil, err
	}
	if b.signer != nil {
		if err := b.signer.SignPackage(pkg); err != nil {
			return nil, err
		}
	}
	glog.Infof("built %s %s with %d assets", pkg.Meta.ID, pkg.Meta.Version, len(m.Assets))

	if err := b.Deliver(ctx, pkg, opts.Delivery); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (b *Builder) packTree(dir string, m *models.AppletManifest, opts Options) error {
	output, _ := filepath.Abs(opts.Output)
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if strings.EqualFold(rel, constants.ManifestFileName) {
			return nil
		}
		if abs, _ := filepath.Abs(p); opts.Output != "" && abs == output {
			return nil
		}

		asset, err := b.registry.Process(packer.Source{Root: dir, Rel: rel}, opts.Optimize)
		if err != nil {
			return err
		}
		asset.Name = models.NormalizeAssetName(rel)
		if existing := m.Asset(asset.Name); existing != nil {
			*existing = *asset
			return nil
		}
		m.Assets = append(m.Assets, asset)
		return nil
	})
}
