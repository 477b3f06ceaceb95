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
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"fmt"

	"applet/internal/compress"
)

const (
	packageRoot  = "AppletPackage"
	solutionRoot = "AppletSolution"
)

// AppletPackage is the distributable, compressed form of an applet.
type AppletPackage struct {
	Meta      *AppletInfo
	Manifest  []byte
	PublicKey []byte
	Version   string
}

// AppletSolution is a package that also bundles the packages it was composed from.
type AppletSolution struct {
	AppletPackage
	Include []*AppletPackage

	solution bool
}

// Artifact is a package or a solution ready to be written out.
type Artifact interface {
	Marshal() ([]byte, error)
	Metadata() *AppletInfo
}

type packageDocument struct {
	XMLName   xml.Name
	Version   string             `xml:"version,attr,omitempty"`
	Meta      *AppletInfo        `xml:"info"`
	Manifest  Blob               `xml:"manifest"`
	PublicKey Blob               `xml:"certificate,omitempty"`
	Include   []*packageDocument `xml:"include"`
}

func compressBlob(data []byte) ([]byte, error) {
	out, err := compress.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress manifest: %w", err)
	}
	return out, nil
}

func (p *AppletPackage) Metadata() *AppletInfo {
	return p.Meta
}

// Digest is the SHA-256 of the compressed manifest.
func (p *AppletPackage) Digest() []byte {
	sum := sha256.Sum256(p.Manifest)
	return sum[:]
}

func (p *AppletPackage) VerifyHash() error {
	if p.Meta == nil || !bytes.Equal(p.Meta.Hash, p.Digest()) {
		return fmt.Errorf("package hash mismatch: %w", ErrSecurity)
	}
	return nil
}

// Unpack decompresses and parses the embedded manifest.
func (p *AppletPackage) Unpack() (*AppletManifest, error) {
	data, err := compress.DecompressIfNeeded(p.Manifest)
	if err != nil {
		return nil, fmt.Errorf("decompress manifest: %w", err)
	}
	m := &AppletManifest{}
	if err := xml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func (p *AppletPackage) IsSigned() bool {
	return p.Meta != nil && len(p.Meta.Signature) > 0
}

func (p *AppletPackage) document(root string) *packageDocument {
	return &packageDocument{
		XMLName:   xml.Name{Local: root},
		Version:   p.Version,
		Meta:      p.Meta,
		Manifest:  p.Manifest,
		PublicKey: p.PublicKey,
	}
}

func (p *AppletPackage) Marshal() ([]byte, error) {
	return marshalDocument(p.document(packageRoot))
}

// Digest of a solution covers the manifests of every included package, in order.
func (s *AppletSolution) Digest() []byte {
	h := sha256.New()
	for _, inc := range s.Include {
		h.Write(inc.Manifest)
	}
	return h.Sum(nil)
}

func (s *AppletSolution) VerifyHash() error {
	if s.Meta == nil || !bytes.Equal(s.Meta.Hash, s.Digest()) {
		return fmt.Errorf("solution hash mismatch: %w", ErrSecurity)
	}
	return nil
}

func (s *AppletSolution) IsSolution() bool {
	return s.solution
}

func (s *AppletSolution) Marshal() ([]byte, error) {
	doc := s.document(solutionRoot)
	for _, inc := range s.Include {
		doc.Include = append(doc.Include, inc.document("include"))
	}
	return marshalDocument(doc)
}

// NewSolution wraps an (empty manifest) package and its includes as a solution.
func NewSolution(p *AppletPackage, include []*AppletPackage) *AppletSolution {
	s := &AppletSolution{AppletPackage: *p, Include: include, solution: true}
	s.Meta.Hash = s.Digest()
	return s
}

func marshalDocument(doc *packageDocument) ([]byte, error) {
	data, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize package: %w", err)
	}
	return compress.Compress(data)
}

// Unmarshal reads either a package or a solution document.
func Unmarshal(data []byte) (*AppletSolution, error) {
	raw, err := compress.DecompressIfNeeded(data)
	if err != nil {
		return nil, fmt.Errorf("decompress package: %w", err)
	}
	doc := &packageDocument{}
	if err := xml.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("parse package: %w", err)
	}
	switch doc.XMLName.Local {
	case packageRoot, solutionRoot:
	default:
		return nil, fmt.Errorf("unexpected package root element %q", doc.XMLName.Local)
	}
	if doc.Meta == nil {
		return nil, fmt.Errorf("package has no info element")
	}
	s := &AppletSolution{
		AppletPackage: *fromDocument(doc),
		solution:      doc.XMLName.Local == solutionRoot,
	}
	for _, inc := range doc.Include {
		if inc.Meta == nil {
			return nil, fmt.Errorf("included package has no info element")
		}
		s.Include = append(s.Include, fromDocument(inc))
	}
	return s, nil
}

func fromDocument(doc *packageDocument) *AppletPackage {
	return &AppletPackage{
		Meta:      doc.Meta,
		Manifest:  doc.Manifest,
		PublicKey: doc.PublicKey,
		Version:   doc.Version,
	}
}

func UnmarshalPackage(data []byte) (*AppletPackage, error) {
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &s.AppletPackage, nil
}

func UnmarshalSolution(data []byte) (*AppletSolution, error) {
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if !s.solution {
		return nil, fmt.Errorf("document is a package, not a solution: %w", ErrNotSupported)
	}
	return s, nil
}
