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
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applet/internal/builder"
	"applet/internal/models"
	"applet/internal/signer"
)

type fakeLookup struct {
	packages map[string]*models.AppletPackage
	latest   map[string]string
	calls    []string
}

func (f *fakeLookup) add(t *testing.T, id, version string, deps ...models.AppletReference) {
	t.Helper()
	m := &models.AppletManifest{
		Info: models.AppletInfo{ID: id, Version: version, Dependencies: deps},
		Strings: []models.AppletStrings{
			{Language: "en", Strings: []models.AppletString{{Key: id + ".title", Value: id}}},
		},
	}
	p, err := m.CreatePackage("1.0.0")
	require.NoError(t, err)
	if f.packages == nil {
		f.packages = map[string]*models.AppletPackage{}
		f.latest = map[string]string{}
	}
	f.packages[id+"@"+version] = p
	if version > f.latest[id] {
		f.latest[id] = version
	}
}

func (f *fakeLookup) Lookup(_ context.Context, id, version string) (*models.AppletPackage, error) {
	f.calls = append(f.calls, id+"@"+version)
	if version == "latest" {
		version = f.latest[id]
	}
	if p, ok := f.packages[id+"@"+version]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%s: %w", id, models.ErrNotFound)
}

func ref(id, version string) models.AppletReference {
	return models.AppletReference{ID: id, Version: version}
}

func solutionManifest(deps ...models.AppletReference) *models.AppletManifest {
	return &models.AppletManifest{Info: models.AppletInfo{ID: "org.example.sln", Version: "1.0", Dependencies: deps}}
}

func includedIDs(sol *models.AppletSolution) []string {
	var ids []string
	for _, p := range sol.Include {
		ids = append(ids, p.Meta.ID+"@"+p.Meta.Version)
	}
	return ids
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Composer Test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	s, err := signer.New(&signer.Credentials{Certificate: cert, Key: key}, true)
	require.NoError(t, err)
	return s
}

func TestComposeTransitive(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.add(t, "a", "1.0", ref("b", ""), ref("c", "1.0"))
	lookup.add(t, "b", "1.0")
	lookup.add(t, "b", "2.0", ref("c", "1.0"))
	lookup.add(t, "c", "1.0")
	lookup.add(t, "d", "1.0", ref("a", "1.0"))

	sol, err := New(lookup, nil, nil, nil).Compose(context.Background(),
		solutionManifest(ref("a", "1.0"), ref("d", "")), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a@1.0", "b@2.0", "c@1.0", "d@1.0"}, includedIDs(sol))
	assert.Empty(t, sol.Meta.Dependencies)
	assert.True(t, sol.IsSolution())
	require.NoError(t, sol.VerifyHash())
	assert.False(t, sol.IsSigned())
}

func TestComposeDeterministic(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.add(t, "a", "1.0", ref("b", ""))
	lookup.add(t, "b", "1.0")
	c := New(lookup, nil, nil, nil)

	first, err := c.Compose(context.Background(), solutionManifest(ref("a", "")), Options{})
	require.NoError(t, err)
	second, err := c.Compose(context.Background(), solutionManifest(ref("a", "")), Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Meta.Hash, second.Meta.Hash)
	assert.Equal(t, includedIDs(first), includedIDs(second))
}

func TestComposeVersionOverride(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.add(t, "a", "1.0")
	lookup.add(t, "a", "3.0")
	lookup.add(t, "b", "1.0")

	sol, err := New(lookup, nil, nil, nil).Compose(context.Background(),
		solutionManifest(ref("a", ""), ref("b", "")), Options{VersionOverride: "1.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@1.0", "b@1.0"}, includedIDs(sol))

	lookup.calls = nil
	sol, err = New(lookup, nil, nil, nil).Compose(context.Background(),
		solutionManifest(ref("a", "")), Options{VersionOverride: "2.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@3.0"}, includedIDs(sol))
	assert.Equal(t, []string{"a@2.0", "a@latest"}, lookup.calls)
}

func TestComposeNotFound(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.add(t, "a", "1.0", ref("missing", "4.2"))
	out := filepath.Join(t.TempDir(), "sln.pak")

	_, err := New(lookup, nil, nil, nil).Compose(context.Background(),
		solutionManifest(ref("a", "")), Options{Delivery: builder.Delivery{Output: out}})
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)
	assert.Equal(t, []string{"4.2"}, nf.Attempts)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	_, err = New(lookup, nil, nil, nil).Compose(context.Background(),
		solutionManifest(ref("nope", "")), Options{VersionOverride: "9.9"})
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"9.9", "latest"}, nf.Attempts)
}

func TestComposeSigning(t *testing.T) {
	s := testSigner(t)
	verifier := &signer.Verifier{Trusted: []string{s.Thumbprint()}}

	testCases := []struct {
		name       string
		resign     bool
		wantSigned bool
	}{
		{"include unsigned", false, false},
		{"resign unsigned", true, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lookup := &fakeLookup{}
			lookup.add(t, "a", "1.0")
			out := filepath.Join(t.TempDir(), "sln.pak")

			sol, err := New(lookup, s, nil, nil).Compose(context.Background(), solutionManifest(ref("a", "")),
				Options{ResignUnsigned: tc.resign, Delivery: builder.Delivery{Output: out}})
			require.NoError(t, err)
			require.NoError(t, verifier.VerifySolution(sol))
			assert.Equal(t, tc.wantSigned, sol.Include[0].IsSigned())

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			back, err := models.UnmarshalSolution(data)
			require.NoError(t, err)
			require.NoError(t, verifier.VerifySolution(back))
		})
	}
}

func TestTranslationMatrix(t *testing.T) {
	manifests := []*models.AppletManifest{
		{Strings: []models.AppletStrings{
			{Language: "en", Strings: []models.AppletString{{Key: "hello", Value: "Hello"}, {Key: "bye", Value: "Bye"}}},
			{Language: "fr", Strings: []models.AppletString{{Key: "hello", Value: "Bonjour"}}},
		}},
		{Strings: []models.AppletStrings{
			{Language: "EN", Strings: []models.AppletString{{Key: "hello", Value: "Hi"}, {Key: "ok", Value: "OK"}}},
			{Language: "es-mx", Strings: []models.AppletString{{Key: "ok", Value: "Vale"}}},
		}},
	}
	tm := NewTranslationMatrix(manifests)
	assert.Equal(t, []string{"en", "fr", "es-MX"}, tm.Locales)
	assert.Equal(t, []string{"hello", "bye", "ok"}, tm.Keys)

	var buf bytes.Buffer
	require.NoError(t, WriteTranslationCSV(&buf, tm))
	assert.Equal(t, "key,en,fr,es-MX\nhello,Hello,Bonjour,\nbye,Bye,,\nok,OK,,Vale\n", buf.String())
}

func TestComposeWritesTranslations(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.add(t, "a", "1.0")
	csvPath := filepath.Join(t.TempDir(), "i18n.csv")

	_, err := New(lookup, nil, nil, nil).Compose(context.Background(), solutionManifest(ref("a", "")),
		Options{TranslationOutput: csvPath})
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "key,en\na.title,a\n", string(data))

	out := filepath.Join(t.TempDir(), "solution.pak")
	_, err = New(lookup, nil, nil, nil).Compose(context.Background(), solutionManifest(ref("a", "")),
		Options{TranslationOutput: t.TempDir(), Delivery: builder.Delivery{Output: out}})
	assert.ErrorContains(t, err, "write translations")
	assert.NoFileExists(t, out)
}
