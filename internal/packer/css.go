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
	"path/filepath"
	"regexp"
	"strings"

	"applet/internal/models"
)

var cssRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`[a-zA-Z]+#`), "#"},
	{regexp.MustCompile(`[\n\r]+\s*`), ""},
	{regexp.MustCompile(`\s+`), " "},
	{regexp.MustCompile(`\s?([:,;{}])\s?`), "$1"},
	{regexp.MustCompile(`;}`), "}"},
	{regexp.MustCompile(`([\s:]0)(px|pt|%|em)`), "$1"},
	{regexp.MustCompile(`/\*[\d\D]*?\*/`), ""},
}

// MinifyCSS applies the ordered stylesheet reductions.
func MinifyCSS(src string) string {
	for _, r := range cssRules {
		src = r.re.ReplaceAllString(src, r.repl)
	}
	return strings.TrimSpace(src)
}

type cssPacker struct{}

func (cssPacker) Extensions() []string { return []string{".css"} }

func (cssPacker) Process(src Source, optimize bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	if optimize && !strings.HasSuffix(strings.ToLower(filepath.Base(file)), ".min.css") {
		data = []byte(MinifyCSS(string(data)))
	}
	return binaryAsset(file, "text/css", data)
}
