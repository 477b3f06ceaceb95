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
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const defaultLanguage = "en"

// Blob is a byte slice serialized as base64 in XML and JSON documents.
type Blob []byte

func (b Blob) MarshalText() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

func (b *Blob) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid base64 blob: %w", err)
	}
	*b = data
	return nil
}

type LocaleString struct {
	Language string `xml:"lang,attr,omitempty" json:"lang,omitempty" yaml:"lang,omitempty"`
	Value    string `xml:",chardata" json:"value" yaml:"value"`
}

type AppletReference struct {
	ID      string `xml:"id,attr" json:"id" yaml:"id"`
	Version string `xml:"version,attr,omitempty" json:"version,omitempty" yaml:"version,omitempty"`
}

func (r AppletReference) String() string {
	if r.Version == "" {
		return r.ID
	}
	return r.ID + "@" + r.Version
}

type AppletInfo struct {
	ID             string            `xml:"id,attr" json:"id" yaml:"id"`
	Version        string            `xml:"version,attr" json:"version" yaml:"version"`
	Author         string            `xml:"author,omitempty" json:"author,omitempty" yaml:"author,omitempty"`
	Names          []LocaleString    `xml:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Icon           string            `xml:"icon,omitempty" json:"icon,omitempty" yaml:"icon,omitempty"`
	Dependencies   []AppletReference `xml:"dependency" json:"dependency,omitempty" yaml:"dependency,omitempty"`
	Hash           Blob              `xml:"hash,omitempty" json:"hash,omitempty" yaml:"-"`
	Signature      Blob              `xml:"signature,omitempty" json:"signature,omitempty" yaml:"-"`
	PublicKeyToken string            `xml:"publicKeyToken,omitempty" json:"publicKeyToken,omitempty" yaml:"publicKeyToken,omitempty"`
	TimeStamp      *time.Time        `xml:"ts,omitempty" json:"ts,omitempty" yaml:"ts,omitempty"`
}

func (i *AppletInfo) DisplayName() string {
	return displayName(i.Names, i.ID)
}

func (i *AppletInfo) Reference() AppletReference {
	return AppletReference{ID: i.ID, Version: i.Version}
}

func (i *AppletInfo) Copy() *AppletInfo {
	c := *i
	c.Names = append([]LocaleString(nil), i.Names...)
	c.Dependencies = append([]AppletReference(nil), i.Dependencies...)
	c.Hash = append(Blob(nil), i.Hash...)
	c.Signature = append(Blob(nil), i.Signature...)
	if i.TimeStamp != nil {
		ts := *i.TimeStamp
		c.TimeStamp = &ts
	}
	return &c
}

func displayName(names []LocaleString, fallback string) string {
	for _, n := range names {
		if n.Language == defaultLanguage {
			return n.Value
		}
	}
	if len(names) > 0 {
		return names[0].Value
	}
	return fallback
}

type AppletMenu struct {
	Launch  string         `xml:"launch,attr,omitempty"`
	Icon    string         `xml:"icon,attr,omitempty"`
	Order   int            `xml:"order,attr,omitempty"`
	Context string         `xml:"context,attr,omitempty"`
	Text    []LocaleString `xml:"text"`
	Menus   []AppletMenu   `xml:"menuItem"`
}

type AppletTemplate struct {
	Mnemonic   string `xml:"mnemonic,attr"`
	Priority   int    `xml:"priority,attr,omitempty"`
	Public     bool   `xml:"public,attr,omitempty"`
	Definition string `xml:"definition,omitempty"`
	View       string `xml:"view,omitempty"`
	Form       string `xml:"form,omitempty"`
}

type AppletLocale struct {
	Code   string   `xml:"code,attr"`
	Assets []string `xml:"asset"`
}

type AppletString struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type AppletStrings struct {
	Language string         `xml:"lang,attr"`
	Strings  []AppletString `xml:"string"`
}

// AppletManifest is the unpacked tree of an applet. It only exists while building or unpacking.
type AppletManifest struct {
	XMLName   xml.Name         `xml:"AppletManifest"`
	Info      AppletInfo       `xml:"info"`
	Assets    []*AppletAsset   `xml:"asset"`
	Menus     []AppletMenu     `xml:"menuItem"`
	Templates []AppletTemplate `xml:"template"`
	Locales   []AppletLocale   `xml:"locale"`
	Strings   []AppletStrings  `xml:"strings"`
}

// NormalizeAssetName converts a file system relative path into a virtual asset path:
// forward slashes, cleaned, no leading slash, case folded.
func NormalizeAssetName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	return cases.Fold().String(p)
}

func LoadManifest(r io.Reader, fileName string) (*AppletManifest, error) {
	d := xml.NewDecoder(r)
	m := &AppletManifest{}
	if err := d.Decode(m); err != nil {
		line, col := d.InputPos()
		return nil, &SourceError{File: fileName, Line: line, Column: col, Err: err}
	}
	if m.Info.ID == "" {
		return nil, &SourceError{File: fileName, Err: fmt.Errorf("applet id is required")}
	}
	return m, nil
}

func ReadManifestFile(fileName string) (*AppletManifest, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadManifest(f, fileName)
}

func (m *AppletManifest) Marshal() ([]byte, error) {
	return xml.Marshal(m)
}

func (m *AppletManifest) Asset(name string) *AppletAsset {
	for _, a := range m.Assets {
		if a.Name == name {
			return a
		}
	}
	return nil
}

const maxVirtualDepth = 8

// RenderAsset renders the named asset, following virtual references inside the manifest.
func (m *AppletManifest) RenderAsset(name string) (*AppletAsset, []byte, error) {
	for depth := 0; depth < maxVirtualDepth; depth++ {
		a := m.Asset(name)
		if a == nil {
			return nil, nil, fmt.Errorf("asset %s: %w", name, ErrNotFound)
		}
		if v, ok := a.Content.(VirtualContent); ok {
			name = NormalizeAssetName(v.Target)
			continue
		}
		data, err := a.Render()
		return a, data, err
	}
	return nil, nil, fmt.Errorf("asset %s: too many virtual redirections", name)
}

// CreatePackage serializes and compresses the manifest into a package stamped with toolVersion.
func (m *AppletManifest) CreatePackage(toolVersion string) (*AppletPackage, error) {
	data, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize manifest %s: %w", m.Info.ID, err)
	}
	blob, err := compressBlob(data)
	if err != nil {
		return nil, err
	}

	meta := m.Info.Copy()
	meta.Signature = nil
	meta.PublicKeyToken = ""
	now := time.Now().UTC()
	meta.TimeStamp = &now

	p := &AppletPackage{
		Meta:     meta,
		Manifest: blob,
		Version:  toolVersion,
	}
	p.Meta.Hash = p.Digest()
	return p, nil
}
