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

package packer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"applet/internal/compress"
	"applet/internal/constants"
	"applet/internal/models"
)

// Source locates one file inside a source tree.
type Source struct {
	Root string
	Rel  string
}

func (s Source) Path() string { return filepath.Join(s.Root, s.Rel) }

// Packer turns one source file into an applet asset. The asset name is assigned by the caller.
type Packer interface {
	Extensions() []string
	Process(src Source, optimize bool) (*models.AppletAsset, error)
}

var mimeTypes = map[string]string{
	".html":    "text/html",
	".htm":     "text/html",
	".css":     "text/css",
	".js":      "application/javascript",
	".json":    "application/json",
	".map":     "application/json",
	".xml":     "text/xml",
	".dataset": "text/xml",
	".cdss":    "text/xml",
	".txt":     "text/plain",
	".md":      "text/markdown",
	".png":     "image/png",
	".jpg":     "image/jpeg",
	".jpeg":    "image/jpeg",
	".gif":     "image/gif",
	".svg":     "image/svg+xml",
	".ico":     "image/x-icon",
	".webp":    "image/webp",
	".woff":    "font/woff",
	".woff2":   "font/woff2",
	".ttf":     "font/ttf",
	".otf":     "font/otf",
	".eot":     "application/vnd.ms-fontobject",
	".pdf":     "application/pdf",
}

// MimeType returns the content type for a file name, or the default octet stream type.
func MimeType(name string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return constants.DefaultMimeType
}

type Registry struct {
	packers  map[string]Packer
	fallback Packer
}

func NewRegistry() *Registry {
	r := &Registry{
		packers:  make(map[string]Packer),
		fallback: binaryPacker{},
	}
	for _, p := range []Packer{
		cssPacker{},
		jsPacker{},
		htmlPacker{},
		jsonPacker{},
		xmlPacker{},
		cdssPacker{},
	} {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Packer) {
	for _, ext := range p.Extensions() {
		r.packers[strings.ToLower(ext)] = p
	}
}

func (r *Registry) For(file string) Packer {
	if p, ok := r.packers[strings.ToLower(filepath.Ext(file))]; ok {
		return p
	}
	return r.fallback
}

// Process packs file with the packer registered for its extension.
func (r *Registry) Process(src Source, optimize bool) (*models.AppletAsset, error) {
	file := src.Path()
	p := r.For(file)
	glog.V(2).Infof("packing %s with %T optimize:%v", file, p, optimize)

	asset, err := p.Process(src, optimize)
	if err != nil {
		var se *models.SourceError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &models.SourceError{File: file, Err: err}
	}
	return asset, nil
}

func readSource(file string) ([]byte, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

func binaryAsset(file string, mimeType string, data []byte) (*models.AppletAsset, error) {
	out, err := compress.Compress(data)
	if err != nil {
		return nil, err
	}
	return &models.AppletAsset{
		MimeType: mimeType,
		Content:  models.BinaryContent(out),
	}, nil
}

type binaryPacker struct{}

func (binaryPacker) Extensions() []string { return nil }

func (binaryPacker) Process(src Source, _ bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	return binaryAsset(file, MimeType(file), data)
}
