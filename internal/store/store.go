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
	"bytes"
	"context"
	_ "crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/golang/glog"
	"github.com/opencontainers/go-digest"
	bolt "go.etcd.io/bbolt"

	"applet/internal/constants"
	"applet/internal/models"
	"applet/pkg/utils"
)

const PackagesBucketName = "packages"

// Store keeps package blobs on disk under <data>/<id>/<version>.pak and their metadata in a bbolt index.
type Store struct {
	dataDir string
	bdb     *bolt.DB
}

func Open(dataDir string) (*Store, error) {
	err := utils.CheckDir(dataDir)
	if err != nil {
		glog.Errorf("utils.CheckDir %s, err:%s", dataDir, err.Error())
		return nil, err
	}

	dbPath := filepath.Join(dataDir, constants.IndexDbName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		glog.Errorf("bolt.Open %s, err:%s", dbPath, err.Error())
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(PackagesBucketName))
		return err
	})
	if err != nil {
		db.Close()
		glog.Errorf("create bucket %s, err:%s", PackagesBucketName, err.Error())
		return nil, err
	}
	return &Store{dataDir: dataDir, bdb: db}, nil
}

func (s *Store) Close() error {
	return s.bdb.Close()
}

func entryKey(id, version string) []byte {
	return []byte(id + "\x00" + version)
}

func (s *Store) blobPath(id, version string) (string, error) {
	return securejoin.SecureJoin(s.dataDir, filepath.Join(id, version+constants.PackageExtension))
}

// Put validates and stores a published package or solution. The uniqueness check and
// insert run in one write transaction.
func (s *Store) Put(_ context.Context, data []byte) (*models.PackageEntry, error) {
	sol, err := models.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformed, err)
	}
	meta := sol.Meta
	if meta.ID == "" || meta.Version == "" {
		return nil, fmt.Errorf("%w: package id and version are required", models.ErrMalformed)
	}
	if sol.IsSolution() {
		err = sol.VerifyHash()
	} else {
		err = sol.AppletPackage.VerifyHash()
	}
	if err != nil {
		return nil, err
	}

	p, err := s.blobPath(meta.ID, meta.Version)
	if err != nil {
		return nil, err
	}
	entry := &models.PackageEntry{
		ID:             meta.ID,
		Version:        meta.Version,
		Author:         meta.Author,
		Names:          meta.Names,
		Dependencies:   meta.Dependencies,
		Hash:           hex.EncodeToString(meta.Hash),
		PublicKeyToken: meta.PublicKeyToken,
		TimeStamp:      time.Now().UTC().Unix(),
		Solution:       sol.IsSolution(),
		Path:           p,
	}
	if meta.TimeStamp != nil {
		entry.TimeStamp = meta.TimeStamp.UTC().Unix()
	}

	err = s.bdb.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(PackagesBucketName))
		key := entryKey(meta.ID, meta.Version)
		if bucket.Get(key) != nil {
			return fmt.Errorf("%s %s: %w", meta.ID, meta.Version, models.ErrDuplicate)
		}

		d, n, err := utils.AtomicWriteFile(p, bytes.NewReader(data), 0o644)
		if err != nil {
			return err
		}
		entry.Digest = d.String()
		entry.Size = n

		value, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := bucket.Put(key, value); err != nil {
			os.Remove(p)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("stored %s %s digest:%s", entry.ID, entry.Version, entry.Digest)
	return entry, nil
}

func (s *Store) decode(value []byte) (*models.PackageEntry, error) {
	e := &models.PackageEntry{}
	if err := json.Unmarshal(value, e); err != nil {
		return nil, err
	}
	p, err := s.blobPath(e.ID, e.Version)
	if err != nil {
		return nil, err
	}
	e.Path = p
	return e, nil
}

func (s *Store) Get(id, version string) (*models.PackageEntry, error) {
	var entry *models.PackageEntry
	err := s.bdb.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(PackagesBucketName)).Get(entryKey(id, version))
		if value == nil {
			return fmt.Errorf("%s %s: %w", id, version, models.ErrNotFound)
		}
		var err error
		entry, err = s.decode(value)
		return err
	})
	return entry, err
}

// Latest returns the entry with the highest version of id.
func (s *Store) Latest(id string) (*models.PackageEntry, error) {
	var best *models.PackageEntry
	prefix := []byte(id + "\x00")
	err := s.bdb.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(PackagesBucketName)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			e, err := s.decode(v)
			if err != nil {
				return err
			}
			if best == nil || utils.CompareVersions(e.Version, best.Version) > 0 {
				best = e
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("%s: %w", id, models.ErrNotFound)
	}
	return best, nil
}

func (s *Store) All() ([]*models.PackageEntry, error) {
	var entries []*models.PackageEntry
	err := s.bdb.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(PackagesBucketName)).ForEach(func(_, v []byte) error {
			e, err := s.decode(v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// ReadBlob loads the stored package bytes and checks them against the recorded digest.
func (s *Store) ReadBlob(e *models.PackageEntry) ([]byte, error) {
	d, err := digest.Parse(e.Digest)
	if err != nil {
		return nil, fmt.Errorf("entry %s %s digest: %w", e.ID, e.Version, err)
	}
	f, err := os.Open(e.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob for %s %s: %w", e.ID, e.Version, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	verifier := d.Verifier()
	if _, err := io.Copy(io.MultiWriter(&buf, verifier), f); err != nil {
		return nil, err
	}
	if !verifier.Verified() {
		return nil, fmt.Errorf("blob for %s %s does not match %s: %w", e.ID, e.Version, d, models.ErrSecurity)
	}
	return buf.Bytes(), nil
}

// Delete is not supported by the repository.
func (s *Store) Delete(id, version string) error {
	return fmt.Errorf("delete %s %s: %w", id, version, models.ErrNotSupported)
}
