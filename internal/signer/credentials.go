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

package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/crypto/pkcs12"

	"applet/internal/models"
)

// Credentials is a signing certificate and, when available, its private key.
type Credentials struct {
	Certificate *x509.Certificate
	Key         crypto.PrivateKey
}

// Thumbprint is the upper case hex SHA-1 of the certificate DER.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func LoadPFX(file, password string) (*Credentials, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read certificate %s: %w: %w", file, err, models.ErrSecurity)
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode certificate %s: %v: %w", file, err, models.ErrSecurity)
	}
	return &Credentials{Certificate: cert, Key: key}, nil
}

// CertStore is a directory of <THUMBPRINT>.pem files holding a certificate and optionally its key.
type CertStore struct {
	Dir string
}

func (s *CertStore) path(thumbprint string) (string, error) {
	thumbprint = strings.ToUpper(strings.TrimSpace(thumbprint))
	if _, err := hex.DecodeString(thumbprint); err != nil || thumbprint == "" {
		return "", fmt.Errorf("invalid thumbprint %q", thumbprint)
	}
	return securejoin.SecureJoin(s.Dir, thumbprint+".pem")
}

func (s *CertStore) Add(creds *Credentials) (string, error) {
	thumb := Thumbprint(creds.Certificate)
	p, err := s.path(thumb)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", err
	}

	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: creds.Certificate.Raw})
	if creds.Key != nil {
		der, err := x509.MarshalPKCS8PrivateKey(creds.Key)
		if err != nil {
			return "", fmt.Errorf("encode private key: %w", err)
		}
		data = append(data, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})...)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", err
	}
	return thumb, nil
}

func (s *CertStore) Find(thumbprint string) (*Credentials, error) {
	p, err := s.path(thumbprint)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("certificate %s: %w", thumbprint, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	creds := &Credentials{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			if creds.Certificate, err = x509.ParseCertificate(block.Bytes); err != nil {
				return nil, fmt.Errorf("parse certificate %s: %w", thumbprint, err)
			}
		case "PRIVATE KEY":
			if creds.Key, err = x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
				return nil, fmt.Errorf("parse private key %s: %w", thumbprint, err)
			}
		case "RSA PRIVATE KEY":
			if creds.Key, err = x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
				return nil, fmt.Errorf("parse private key %s: %w", thumbprint, err)
			}
		}
	}
	if creds.Certificate == nil {
		return nil, fmt.Errorf("certificate %s: no certificate block", thumbprint)
	}
	return creds, nil
}

func rsaKey(key crypto.PrivateKey) (*rsa.PrivateKey, error) {
	if key == nil {
		return nil, fmt.Errorf("certificate has no private key: %w", models.ErrSecurity)
	}
	k, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T: %w", key, models.ErrSecurity)
	}
	return k, nil
}
