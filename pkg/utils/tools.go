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
	_ "crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/mholt/archiver/v3"
	"github.com/opencontainers/go-digest"

	"applet/internal/constants"
)

func PrettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
	return buf.String()
}

func ExistDir(dirname string) bool {
	fi, err := os.Stat(dirname)
	return err == nil && fi.IsDir()
}

func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func CheckDir(dirname string) error {
	fi, err := os.Stat(dirname)
	if err == nil && fi.IsDir() {
		return nil
	}
	return os.MkdirAll(dirname, 0755)
}

func CheckParentDir(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return CheckDir(filepath.Dir(absPath))
}

func UnArchive(src, dstDir string) error {
	err := CheckDir(dstDir)
	if err != nil {
		glog.Warningf("err:%v\n", err)
		return err
	}

	err = archiver.Unarchive(src, dstDir)
	if err != nil {
		glog.Warningf("err:%v\n", err)
		return err
	}

	return nil
}

// AtomicWriteFile writes data to a temporary file next to path and renames it into place.
// The returned digest is computed while writing.
func AtomicWriteFile(path string, r io.Reader, mode os.FileMode) (digest.Digest, int64, error) {
	if err := CheckParentDir(path); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	d := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(tmp, d.Hash()), r)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", 0, fmt.Errorf("rename %s: %w", path, err)
	}
	return d.Digest(), n, nil
}

func VerifyOffsetAndCount(offset, count string) (int, int) {
	offsetN, err := strconv.Atoi(offset)
	if offsetN < 0 || err != nil {
		offsetN = constants.DefaultOffset
	}

	countN, err := strconv.Atoi(count)
	if countN < 1 || err != nil {
		countN = constants.DefaultPageSize
	}

	return offsetN, countN
}

func RemoteIp(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := req.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
