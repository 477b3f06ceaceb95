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

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applet/internal/models"
)

func packageBytes(t *testing.T, id, version, author, name string) []byte {
	t.Helper()
	m := &models.AppletManifest{Info: models.AppletInfo{
		ID: id, Version: version, Author: author,
		Names: []models.LocaleString{{Language: "en", Value: name}},
	}}
	p, err := m.CreatePackage("1.0.0")
	require.NoError(t, err)
	data, err := p.Marshal()
	require.NoError(t, err)
	return data
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	data := packageBytes(t, "org.example.a", "1.0", "Alice", "A")

	e, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "org.example.a", e.ID)
	assert.Equal(t, int64(len(data)), e.Size)
	assert.Contains(t, e.Digest, "sha256:")
	assert.False(t, e.Solution)

	_, err = s.Put(ctx, data)
	assert.ErrorIs(t, err, models.ErrDuplicate)

	got, err := s.Get("org.example.a", "1.0")
	require.NoError(t, err)
	blob, err := s.ReadBlob(got)
	require.NoError(t, err)
	assert.Equal(t, data, blob)

	_, err = s.Get("org.example.a", "2.0")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, os.WriteFile(got.Path, []byte("tampered"), 0o644))
	_, err = s.ReadBlob(got)
	assert.ErrorIs(t, err, models.ErrSecurity)
}

func TestPutRejects(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Put(ctx, []byte("garbage"))
	assert.ErrorIs(t, err, models.ErrMalformed)

	m := &models.AppletManifest{Info: models.AppletInfo{ID: "a", Version: "1.0"}}
	p, err := m.CreatePackage("1.0.0")
	require.NoError(t, err)
	p.Meta.Hash = []byte{1, 2, 3}
	data, err := p.Marshal()
	require.NoError(t, err)
	_, err = s.Put(ctx, data)
	assert.ErrorIs(t, err, models.ErrSecurity)

	assert.ErrorIs(t, s.Delete("a", "1.0"), models.ErrNotSupported)
}

func TestLatest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, v := range []string{"1.2", "1.10", "1.9"} {
		_, err := s.Put(ctx, packageBytes(t, "a", v, "", "A"))
		require.NoError(t, err)
	}
	_, err := s.Put(ctx, packageBytes(t, "ab", "9.0", "", "AB"))
	require.NoError(t, err)

	e, err := s.Latest("a")
	require.NoError(t, err)
	assert.Equal(t, "1.10", e.Version)

	_, err = s.Latest("b")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, p := range [][]string{
		{"org.example.core", "1.0", "Alice", "Core"},
		{"org.example.core", "2.0", "Alice", "Core"},
		{"org.example.ui", "2.0", "Bob", "Admin UI"},
		{"org.other.tool", "0.5", "Carol", "Tool"},
	} {
		_, err := s.Put(ctx, packageBytes(t, p[0], p[1], p[2], p[3]))
		require.NoError(t, err)
	}

	ids := func(entries []*models.PackageEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.ID+"@"+e.Version)
		}
		return out
	}

	testCases := []struct {
		name      string
		query     Query
		want      []string
		wantTotal int
	}{
		{"all sorted", Query{}, []string{"org.example.ui@2.0", "org.example.core@2.0", "org.example.core@1.0", "org.other.tool@0.5"}, 4},
		{"prefix", Query{Filters: map[string][]string{"id": {"org.example.*"}}}, []string{"org.example.ui@2.0", "org.example.core@2.0", "org.example.core@1.0"}, 3},
		{"or values", Query{Filters: map[string][]string{"author": {"bob", "Carol"}}}, []string{"org.example.ui@2.0", "org.other.tool@0.5"}, 2},
		{"and fields", Query{Filters: map[string][]string{"author": {"Alice"}, "version": {"1.0"}}}, []string{"org.example.core@1.0"}, 1},
		{"name", Query{Filters: map[string][]string{"name": {"admin*"}}}, []string{"org.example.ui@2.0"}, 1},
		{"paged", Query{Offset: 1, Count: 2}, []string{"org.example.core@2.0", "org.example.core@1.0"}, 4},
		{"past end", Query{Offset: 10}, nil, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, total, err := s.Query(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(entries))
			assert.Equal(t, tc.wantTotal, total)
		})
	}
}

func TestSolutionFlag(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	inc, err := (&models.AppletManifest{Info: models.AppletInfo{ID: "a", Version: "1.0"}}).CreatePackage("1.0.0")
	require.NoError(t, err)
	shell, err := (&models.AppletManifest{Info: models.AppletInfo{ID: "sln", Version: "1.0"}}).CreatePackage("1.0.0")
	require.NoError(t, err)
	data, err := models.NewSolution(shell, []*models.AppletPackage{inc}).Marshal()
	require.NoError(t, err)

	e, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.True(t, e.Solution)
}
