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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dop251/goja/parser"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"

	"applet/internal/models"
)

const jsMediaType = "application/javascript"

var referenceDirective = regexp.MustCompile(`(?m)^[ \t]*///[ \t]*<reference[^\n]*\n?`)

func newMinifier() *minify.M {
	m := minify.New()
	m.Add(jsMediaType, &js.Minifier{KeepVarNames: true})
	return m
}

// MinifyJS strips reference directives and minifies the script keeping identifier names.
func MinifyJS(src []byte) ([]byte, error) {
	src = referenceDirective.ReplaceAll(src, nil)
	return newMinifier().Bytes(jsMediaType, src)
}

// CheckScript parses src and reports the first syntax error with its position.
func CheckScript(file string, src []byte) error {
	_, err := parser.ParseFile(nil, file, src, 0)
	if err == nil {
		return nil
	}
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		pos := list[0].Position
		return &models.SourceError{File: file, Line: pos.Line, Column: pos.Column, Err: errors.New(list[0].Message)}
	}
	return &models.SourceError{File: file, Err: err}
}

// isRulesScript reports whether rel, relative to the source root, lies under a rules path.
func isRulesScript(rel string) bool {
	return strings.Contains(strings.ToLower(filepath.ToSlash(rel)), "rules")
}

type jsPacker struct{}

func (jsPacker) Extensions() []string { return []string{".js"} }

func (jsPacker) Process(src Source, optimize bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	switch {
	case isRulesScript(src.Rel):
		if err := CheckScript(file, data); err != nil {
			return nil, err
		}
	case optimize && !strings.HasSuffix(strings.ToLower(filepath.Base(file)), ".min.js"):
		if data, err = MinifyJS(data); err != nil {
			return nil, err
		}
	}
	return binaryAsset(file, jsMediaType, data)
}
