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

package utils

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"gotest.tools/v3/assert"
)

func TestCompareVersions(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.10", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0.1", "1.0.0.0", 1},
		{"1.0.0.0", "1.0.0.0.1", -1},
		{"1.0.0-beta", "1.0.0", -1},
	}
	for _, tc := range testCases {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, CompareVersions(tc.a, tc.b))
		})
	}
}

func TestNeedUpgrade(t *testing.T) {
	assert.Assert(t, NeedUpgrade("1.0.0", "1.1.0", false))
	assert.Assert(t, !NeedUpgrade("1.1.0", "1.1.0", false))
	assert.Assert(t, NeedUpgrade("1.1.0", "1.1.0", true))
}

func TestMaxVersion(t *testing.T) {
	assert.Equal(t, -1, MaxVersion(nil))
	assert.Equal(t, 1, MaxVersion([]string{"1.0", "2.0", "1.5", "2.0"}))
}

func TestAtomicWriteFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b.pak")
	data := []byte("payload")

	d, n, err := AtomicWriteFile(p, bytes.NewReader(data), 0o644)
	assert.NilError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, digest.FromBytes(data), d)

	got, err := os.ReadFile(p)
	assert.NilError(t, err)
	assert.DeepEqual(t, data, got)

	entries, err := os.ReadDir(filepath.Dir(p))
	assert.NilError(t, err)
	assert.Equal(t, 1, len(entries))
}

func TestVerifyOffsetAndCount(t *testing.T) {
	o, c := VerifyOffsetAndCount("5", "10")
	assert.Equal(t, 5, o)
	assert.Equal(t, 10, c)

	o, c = VerifyOffsetAndCount("-1", "x")
	assert.Equal(t, 0, o)
	assert.Equal(t, 100, c)
}

func TestRemoteIp(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://x/", nil)
	assert.NilError(t, err)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", RemoteIp(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", RemoteIp(req))
}
