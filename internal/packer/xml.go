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
	"io"

	"applet/internal/models"
)

// CheckXML reports the position of the first well-formedness error.
func CheckXML(file string, data []byte) error {
	d := newDecoder(data)
	for {
		_, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return syntaxError(file, d, err)
		}
	}
}

// CompactXML re-serializes a document without its declaration and whitespace-only text.
func CompactXML(data []byte) ([]byte, error) {
	s := &serializer{dropWhitespace: true}
	return s.run(newDecoder(data))
}

type xmlPacker struct{}

func (xmlPacker) Extensions() []string { return []string{".xml", ".dataset"} }

func (xmlPacker) Process(src Source, optimize bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	if err := CheckXML(file, data); err != nil {
		return nil, err
	}
	if optimize {
		if data, err = CompactXML(data); err != nil {
			return nil, err
		}
	}
	return binaryAsset(file, "text/xml", data)
}
