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
	"bytes"
	"errors"

	"applet/internal/cdss"
	"applet/internal/models"
)

type cdssPacker struct{}

func (cdssPacker) Extensions() []string { return []string{".cdss"} }

func (cdssPacker) Process(src Source, _ bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	lib, err := cdss.Transpile(bytes.NewReader(data))
	if err != nil {
		var se *cdss.SyntaxError
		if errors.As(err, &se) {
			return nil, &models.SourceError{File: file, Line: se.Line, Err: errors.New(se.Msg)}
		}
		return nil, &models.SourceError{File: file, Err: err}
	}
	out, err := lib.Marshal()
	if err != nil {
		return nil, err
	}
	return binaryAsset(file, "text/xml", out)
}
