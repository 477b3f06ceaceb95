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
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/thoas/go-funk"
	"golang.org/x/term"

	"applet/internal/models"
)

// Signer signs packages and solutions with an RSA certificate.
type Signer struct {
	cert             *x509.Certificate
	key              *rsa.PrivateKey
	thumbprint       string
	embedCertificate bool
}

// New validates the credentials. A missing or non RSA key, or a certificate outside
// its validity window, is a security error.
func New(creds *Credentials, embedCertificate bool) (*Signer, error) {
	if creds == nil || creds.Certificate == nil {
		return nil, fmt.Errorf("no signing certificate: %w", models.ErrSecurity)
	}
	key, err := rsaKey(creds.Key)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if now.Before(creds.Certificate.NotBefore) || now.After(creds.Certificate.NotAfter) {
		return nil, fmt.Errorf("certificate %s is not valid at %s: %w",
			Thumbprint(creds.Certificate), now.UTC().Format(time.RFC3339), models.ErrSecurity)
	}
	return &Signer{
		cert:             creds.Certificate,
		key:              key,
		thumbprint:       Thumbprint(creds.Certificate),
		embedCertificate: embedCertificate,
	}, nil
}

func (s *Signer) Thumbprint() string {
	return s.thumbprint
}

func (s *Signer) sign(meta *models.AppletInfo, publicKey *[]byte, digest []byte) error {
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest)
	if err != nil {
		return fmt.Errorf("sign %s: %v: %w", meta.ID, err, models.ErrSecurity)
	}
	meta.Hash = digest
	meta.Signature = sig
	meta.PublicKeyToken = s.thumbprint
	if s.embedCertificate {
		*publicKey = s.cert.Raw
	}
	glog.Infof("signed %s %s with %s", meta.ID, meta.Version, s.thumbprint)
	return nil
}

func (s *Signer) SignPackage(p *models.AppletPackage) error {
	return s.sign(p.Meta, &p.PublicKey, p.Digest())
}

func (s *Signer) SignSolution(sol *models.AppletSolution) error {
	return s.sign(sol.Meta, &sol.PublicKey, sol.Digest())
}

// Verifier checks package integrity, signature and publisher trust.
type Verifier struct {
	Trusted []string
	Store   *CertStore
}

func (v *Verifier) VerifyPackage(p *models.AppletPackage) error {
	return v.verify(p.Meta, p.PublicKey, p.Digest())
}

func (v *Verifier) VerifySolution(sol *models.AppletSolution) error {
	return v.verify(sol.Meta, sol.PublicKey, sol.Digest())
}

func (v *Verifier) verify(meta *models.AppletInfo, publicKey []byte, digest []byte) error {
	if meta == nil {
		return fmt.Errorf("package has no metadata: %w", models.ErrSecurity)
	}
	if !bytes.Equal(meta.Hash, digest) {
		return fmt.Errorf("%s: hash mismatch: %w", meta.ID, models.ErrSecurity)
	}
	if len(meta.Signature) == 0 {
		return fmt.Errorf("%s: package is not signed: %w", meta.ID, models.ErrSecurity)
	}

	cert, err := v.certificate(meta.PublicKeyToken, publicKey)
	if err != nil {
		return err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%s: unsupported public key %T: %w", meta.ID, cert.PublicKey, models.ErrSecurity)
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, meta.Signature); err != nil {
		return fmt.Errorf("%s: invalid signature: %w", meta.ID, models.ErrSecurity)
	}

	trusted := funk.Map(v.Trusted, strings.ToUpper).([]string)
	if !funk.ContainsString(trusted, strings.ToUpper(meta.PublicKeyToken)) {
		return fmt.Errorf("%s: publisher %s is not trusted: %w", meta.ID, meta.PublicKeyToken, models.ErrSecurity)
	}
	return nil
}

func (v *Verifier) certificate(token string, embedded []byte) (*x509.Certificate, error) {
	if len(embedded) > 0 {
		cert, err := x509.ParseCertificate(embedded)
		if err != nil {
			return nil, fmt.Errorf("parse embedded certificate: %v: %w", err, models.ErrSecurity)
		}
		if !strings.EqualFold(Thumbprint(cert), token) {
			return nil, fmt.Errorf("embedded certificate does not match %s: %w", token, models.ErrSecurity)
		}
		return cert, nil
	}
	if v.Store == nil {
		return nil, fmt.Errorf("no certificate for publisher %s: %w", token, models.ErrSecurity)
	}
	creds, err := v.Store.Find(token)
	if err != nil {
		return nil, fmt.Errorf("publisher %s: %v: %w", token, err, models.ErrSecurity)
	}
	return creds.Certificate, nil
}

// ResolvePassword returns password, else the first line of passwordFile, else prompts on a terminal.
func ResolvePassword(password, passwordFile string) (string, error) {
	if password != "" {
		return password, nil
	}
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		line, _, _ := strings.Cut(string(data), "\n")
		return strings.TrimRight(line, "\r"), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, "Certificate password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
