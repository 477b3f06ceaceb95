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

// Package auth implements the repository's flat basic-auth access file. Each line is
// hex(sha256(user)):hex(sha256(password)).
package auth

import (
	"bufio"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"applet/pkg/utils"
)

type AccessFile struct {
	Path string
}

func NewAccessFile(path string) *AccessFile {
	return &AccessFile{Path: path}
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (a *AccessFile) entries() (map[string]string, error) {
	f, err := os.Open(a.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries := map[string]string{}
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		user, secret, ok := strings.Cut(text, ":")
		if !ok {
			glog.Warningf("%s:%d: malformed access entry", a.Path, line)
			continue
		}
		entries[strings.ToLower(user)] = strings.ToLower(secret)
	}
	return entries, sc.Err()
}

// Authenticate checks user and password against the access file. The file is read on
// every call so added users take effect without a restart.
func (a *AccessFile) Authenticate(user, password string) (bool, error) {
	entries, err := a.entries()
	if err != nil {
		return false, err
	}
	want, ok := entries[hashHex(user)]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(hashHex(password))) == 1, nil
}

// AddUser appends a user with a generated secret and returns the secret.
func (a *AccessFile) AddUser(user string) (string, error) {
	if user == "" || strings.Contains(user, ":") {
		return "", fmt.Errorf("invalid user name %q", user)
	}
	entries, err := a.entries()
	if err != nil {
		return "", err
	}
	if _, ok := entries[hashHex(user)]; ok {
		return "", fmt.Errorf("user %s already exists", user)
	}

	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := utils.CheckParentDir(a.Path); err != nil {
		return "", err
	}
	f, err := os.OpenFile(a.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(f, "%s:%s\n", hashHex(user), hashHex(secret)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return secret, nil
}
