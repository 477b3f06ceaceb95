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

package composer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"applet/internal/builder"
	"applet/internal/constants"
	"applet/internal/models"
	"applet/internal/repository"
	"applet/internal/signer"
	"applet/pkg/utils"
)

type Options struct {
	builder.Delivery
	Version string
	// VersionOverride is tried for dependencies that do not pin a version.
	VersionOverride string
	ResignUnsigned  bool
	// TranslationOutput, when set, receives the translation matrix as CSV.
	TranslationOutput string
}

type Composer struct {
	builder.Deliverer
	lookup repository.Lookup
	signer *signer.Signer
}

func New(lookup repository.Lookup, s *signer.Signer, installer repository.Installer, publisher repository.Publisher) *Composer {
	return &Composer{
		Deliverer: builder.Deliverer{Installer: installer, Publisher: publisher},
		lookup:    lookup,
		signer:    s,
	}
}

type composition struct {
	opts     Options
	included map[string]bool
	packages []*models.AppletPackage
}

// Compose resolves every transitive dependency of m into a solution. Nothing is
// written when a dependency cannot be resolved.
func (c *Composer) Compose(ctx context.Context, m *models.AppletManifest, opts Options) (*models.AppletSolution, error) {
	comp := &composition{opts: opts, included: map[string]bool{m.Info.ID: true}}
	for _, dep := range m.Info.Dependencies {
		if err := c.resolve(ctx, comp, dep); err != nil {
			return nil, err
		}
	}

	shell := *m
	shell.Info = *m.Info.Copy()
	shell.Info.Dependencies = nil
	for _, dep := range m.Info.Dependencies {
		if !comp.included[dep.ID] {
			shell.Info.Dependencies = append(shell.Info.Dependencies, dep)
		}
	}
	if opts.Version != "" {
		shell.Info.Version = opts.Version
	}

	pkg, err := shell.CreatePackage(constants.ToolVersion)
	if err != nil {
		return nil, err
	}
	sol := models.NewSolution(pkg, comp.packages)
	if c.signer != nil {
		if err := c.signer.SignSolution(sol); err != nil {
			return nil, err
		}
	}
	glog.Infof("composed %s %s with %d packages", sol.Meta.ID, sol.Meta.Version, len(sol.Include))

	if opts.TranslationOutput != "" {
		if err := c.writeTranslations(&shell, sol, opts.TranslationOutput); err != nil {
			return nil, err
		}
	}
	if err := c.Deliver(ctx, sol, opts.Delivery); err != nil {
		return nil, err
	}
	return sol, nil
}

func (c *Composer) resolve(ctx context.Context, comp *composition, dep models.AppletReference) error {
	if comp.included[dep.ID] {
		return nil
	}

	var attempts []string
	switch {
	case dep.Version != "":
		attempts = []string{dep.Version}
	case comp.opts.VersionOverride != "":
		attempts = []string{comp.opts.VersionOverride, constants.LatestVersion}
	default:
		attempts = []string{constants.LatestVersion}
	}

	var pkg *models.AppletPackage
	for _, v := range attempts {
		p, err := c.lookup.Lookup(ctx, dep.ID, v)
		if err == nil {
			pkg = p
			break
		}
		if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("resolve %s: %w", dep, err)
		}
	}
	if pkg == nil {
		return &models.NotFoundError{ID: dep.ID, Attempts: attempts}
	}

	if c.signer != nil && !pkg.IsSigned() {
		if comp.opts.ResignUnsigned {
			glog.Warningf("dependency %s %s is unsigned, signing it with %s", pkg.Meta.ID, pkg.Meta.Version, c.signer.Thumbprint())
			if err := c.signer.SignPackage(pkg); err != nil {
				return err
			}
		} else {
			glog.Warningf("dependency %s %s is unsigned and included as is", pkg.Meta.ID, pkg.Meta.Version)
		}
	}

	comp.included[dep.ID] = true
	comp.packages = append(comp.packages, pkg)
	glog.V(2).Infof("included %s %s", pkg.Meta.ID, pkg.Meta.Version)

	for _, sub := range pkg.Meta.Dependencies {
		if err := c.resolve(ctx, comp, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composer) writeTranslations(root *models.AppletManifest, sol *models.AppletSolution, output string) error {
	manifests := []*models.AppletManifest{root}
	for _, p := range sol.Include {
		m, err := p.Unpack()
		if err != nil {
			return fmt.Errorf("unpack %s: %w", p.Meta.ID, err)
		}
		manifests = append(manifests, m)
	}
	var buf bytes.Buffer
	if err := WriteTranslationCSV(&buf, NewTranslationMatrix(manifests)); err != nil {
		return err
	}
	if _, _, err := utils.AtomicWriteFile(output, &buf, 0o644); err != nil {
		return fmt.Errorf("write translations: %w", err)
	}
	return nil
}
