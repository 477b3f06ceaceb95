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

package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest() *AppletManifest {
	return &AppletManifest{
		Info: AppletInfo{
			ID:      "org.example.core",
			Version: "1.2.0",
			Author:  "Example",
			Names:   []LocaleString{{Language: "en", Value: "Core"}, {Language: "fr", Value: "Noyau"}},
			Dependencies: []AppletReference{
				{ID: "org.example.base", Version: "1.0"},
			},
		},
		Assets: []*AppletAsset{
			{Name: "views/index.html", MimeType: "text/html", Content: &HTMLContent{
				Titles: []LocaleString{{Language: "en", Value: "Home"}},
				Widget: &Widget{Name: "w1", Type: WidgetPanel},
				HTML:   Blob("<div>hi</div>"),
			}},
			{Name: "css/site.css", MimeType: "text/css", Content: TextContent("body{color:red}")},
			{Name: "img/logo.png", MimeType: "image/png", Content: BinaryContent{0x89, 0x50, 0x00, 0xff}},
			{Name: "index.html", Content: VirtualContent{Target: "views/index.html"}},
			{Name: "loop.html", Content: VirtualContent{Target: "loop.html"}},
		},
		Strings: []AppletStrings{{Language: "en", Strings: []AppletString{{Key: "k", Value: "v"}}}},
	}
}

func TestNormalizeAssetName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"Views\\Index.HTML", "views/index.html"},
		{"/css/./site.css", "css/site.css"},
		{"a/b/../C.js", "a/c.js"},
		{"plain.txt", "plain.txt"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeAssetName(tc.in))
		})
	}
}

func TestManifestXMLRoundTrip(t *testing.T) {
	m := testManifest()
	data, err := m.Marshal()
	require.NoError(t, err)

	back, err := LoadManifest(strings.NewReader(string(data)), "manifest.xml")
	require.NoError(t, err)
	assert.Equal(t, m.Info.ID, back.Info.ID)
	assert.Equal(t, m.Info.Dependencies, back.Info.Dependencies)
	require.Len(t, back.Assets, len(m.Assets))

	html, ok := back.Assets[0].Content.(*HTMLContent)
	require.True(t, ok)
	assert.Equal(t, "w1", html.Widget.Name)
	assert.Equal(t, TextContent("body{color:red}"), back.Assets[1].Content)
	assert.Equal(t, BinaryContent{0x89, 0x50, 0x00, 0xff}, back.Assets[2].Content)
	assert.Equal(t, VirtualContent{Target: "views/index.html"}, back.Assets[3].Content)
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest(strings.NewReader("<AppletManifest><info id='x'>"), "bad.xml")
	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "bad.xml", se.File)
	assert.Greater(t, se.Line, 0)

	_, err = LoadManifest(strings.NewReader("<AppletManifest><info version='1'/></AppletManifest>"), "noid.xml")
	require.Error(t, err)
}

func TestRenderAsset(t *testing.T) {
	m := testManifest()

	a, data, err := m.RenderAsset("index.html")
	require.NoError(t, err)
	assert.Equal(t, "views/index.html", a.Name)
	assert.Equal(t, "<div>hi</div>", string(data))

	_, _, err = m.RenderAsset("missing.js")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = m.RenderAsset("loop.html")
	assert.Error(t, err)

	_, err = m.Asset("index.html").Render()
	assert.ErrorIs(t, err, ErrVirtualContent)
}

func TestCreatePackageAndUnpack(t *testing.T) {
	m := testManifest()
	p, err := m.CreatePackage("1.0.0")
	require.NoError(t, err)
	require.NoError(t, p.VerifyHash())
	assert.NotNil(t, p.Meta.TimeStamp)
	assert.False(t, p.IsSigned())

	data, err := p.Marshal()
	require.NoError(t, err)

	back, err := UnmarshalPackage(data)
	require.NoError(t, err)
	require.NoError(t, back.VerifyHash())
	assert.Equal(t, "1.0.0", back.Version)
	assert.Equal(t, m.Info.ID, back.Meta.ID)

	unpacked, err := back.Unpack()
	require.NoError(t, err)
	assert.Equal(t, len(m.Assets), len(unpacked.Assets))

	back.Manifest = append(back.Manifest, 0)
	assert.ErrorIs(t, back.VerifyHash(), ErrSecurity)

	_, err = UnmarshalSolution(data)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestSolutionRoundTrip(t *testing.T) {
	core, err := testManifest().CreatePackage("1.0.0")
	require.NoError(t, err)

	sm := &AppletManifest{Info: AppletInfo{ID: "org.example.solution", Version: "2.0"}}
	shell, err := sm.CreatePackage("1.0.0")
	require.NoError(t, err)

	s := NewSolution(shell, []*AppletPackage{core})
	require.NoError(t, s.VerifyHash())

	data, err := s.Marshal()
	require.NoError(t, err)

	back, err := UnmarshalSolution(data)
	require.NoError(t, err)
	assert.True(t, back.IsSolution())
	require.Len(t, back.Include, 1)
	assert.Equal(t, "org.example.core", back.Include[0].Meta.ID)
	assert.Equal(t, s.Digest(), back.Digest())
	require.NoError(t, back.VerifyHash())

	pkg, err := UnmarshalPackage(data)
	require.NoError(t, err)
	assert.Equal(t, "org.example.solution", pkg.Meta.ID)
}

func TestUnmarshalRejectsUnknownRoot(t *testing.T) {
	_, err := Unmarshal([]byte("<Other/>"))
	assert.Error(t, err)
}

func TestWidgetValidate(t *testing.T) {
	testCases := []struct {
		name    string
		widget  Widget
		wantErr bool
	}{
		{"ok", Widget{Name: "a", Type: WidgetTab, Size: WidgetLarge}, false},
		{"no name", Widget{}, true},
		{"bad type", Widget{Name: "a", Type: "Box"}, true},
		{"bad size", Widget{Name: "a", Size: "Huge"}, true},
		{"bad view", Widget{Name: "a", Views: []WidgetView{{Type: "Other"}}}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.widget.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{ID: "a.b", Attempts: []string{"1.0", "latest"}})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "1.0, latest")
}

func TestDisplayName(t *testing.T) {
	info := AppletInfo{ID: "x", Names: []LocaleString{{Language: "fr", Value: "Noyau"}, {Language: "en", Value: "Core"}}}
	assert.Equal(t, "Core", info.DisplayName())
	assert.Equal(t, "x", (&AppletInfo{ID: "x"}).DisplayName())
}
