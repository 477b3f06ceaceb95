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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archiver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applet/internal/models"
	"applet/internal/packer"
	"applet/internal/repository"
)

const manifestXML = `<AppletManifest xmlns="http://applet.dev/applet">
  <info id="org.example.app" version="1.0.0">
    <name lang="en">Example</name>
    <dependency id="org.example.core" version="1.0"/>
  </info>
</AppletManifest>`

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(context.Context, string, models.Artifact) error {
	p.calls++
	return errors.New("connection refused")
}

func sourceTree(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "app")
	files := map[string]string{
		"manifest.xml":       manifestXML,
		"css/Site.css":       "  body {  color:  red;  }",
		"views/index.html":   "<div><p>hello</p></div>",
		"img/logo.png":       "\x89PNG",
		".git/config":        "ignored",
		"css/.hidden.css":    "ignored",
		"data/settings.json": `{"a":1}`,
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func assetNames(m *models.AppletManifest) []string {
	var names []string
	for _, a := range m.Assets {
		names = append(names, a.Name)
	}
	return names
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	src := sourceTree(t)
	out := filepath.Join(t.TempDir(), "out", "app.pak")
	cache := repository.NewCache(t.TempDir())
	pub := &failingPublisher{}

	b := New(packer.NewRegistry(), nil, cache, pub)
	pkg, err := b.Build(ctx, Options{
		Source:   src,
		Optimize: true,
		Version:  "1.1.0",
		Delivery: Delivery{Output: out, Install: true, Publish: true, PublishServer: "http://localhost:1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", pkg.Meta.Version)
	assert.False(t, pkg.IsSigned())
	assert.Equal(t, 1, pub.calls)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	back, err := models.UnmarshalPackage(data)
	require.NoError(t, err)
	require.NoError(t, back.VerifyHash())

	m, err := back.Unpack()
	require.NoError(t, err)
	assert.Equal(t, []string{"css/site.css", "data/settings.json", "img/logo.png", "views/index.html"}, assetNames(m))
	assert.Equal(t, "1.1.0", m.Info.Version)

	_, css, err := m.RenderAsset("css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(css))
	assert.True(t, m.Asset("views/index.html").IsHTML())

	cached, err := cache.Get(ctx, "org.example.app", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, pkg.Meta.Hash, cached.Meta.Hash)
}

func TestBuildSources(t *testing.T) {
	ctx := context.Background()
	src := sourceTree(t)

	zipPath := filepath.Join(t.TempDir(), "app.zip")
	require.NoError(t, archiver.Archive([]string{src}, zipPath))

	testCases := []struct {
		name   string
		source string
	}{
		{"directory", src},
		{"manifest file", filepath.Join(src, "manifest.xml")},
		{"zip archive", zipPath},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkg, err := New(packer.NewRegistry(), nil, nil, nil).Build(ctx, Options{Source: tc.source})
			require.NoError(t, err)
			assert.Equal(t, "org.example.app", pkg.Meta.ID)
			assert.Equal(t, "1.0.0", pkg.Meta.Version)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	ctx := context.Background()
	b := New(packer.NewRegistry(), nil, nil, nil)

	_, err := b.Build(ctx, Options{Source: t.TempDir()})
	assert.ErrorIs(t, err, models.ErrNotFound)

	src := sourceTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(src, "bad.xml"), []byte("<a><b></a>"), 0o644))
	out := filepath.Join(t.TempDir(), "x.pak")
	_, err = b.Build(ctx, Options{Source: src, Delivery: Delivery{Output: out}})
	var se *models.SourceError
	require.True(t, errors.As(err, &se))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	_, err = b.Build(ctx, Options{Source: sourceTree(t), Delivery: Delivery{Install: true}})
	assert.Error(t, err)
}
