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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"applet/internal/compress"
	"applet/internal/constants"
	"applet/internal/models"
)

var includeDirective = regexp.MustCompile(`^(\s*#include\s+virtual=")([^"]*)(".*)$`)

type scriptElement struct {
	Reference string `xml:",chardata"`
	Static    string `xml:"static,attr"`
}

// HTMLView is the result of processing one HTML view.
type HTMLView struct {
	Content  *models.HTMLContent
	Policies []string
}

// rewriteInclude normalizes the target of an include directive. Directives survive optimization.
func rewriteInclude(comment string) (string, bool) {
	m := includeDirective.FindStringSubmatch(comment)
	if m == nil {
		return comment, false
	}
	return m[1] + models.NormalizeAssetName(m[2]) + m[3], true
}

// ProcessHTML extracts the private applet elements from an HTML view and
// returns the view metadata with the residual markup compressed.
func ProcessHTML(file string, data []byte, optimize bool) (*HTMLView, error) {
	view := &HTMLView{Content: &models.HTMLContent{}}
	prefixes := map[string]bool{}

	d := newDecoder(data)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, syntaxError(file, d, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Space == "xmlns" && a.Value == constants.AppletNamespace {
				prefixes[a.Name.Local] = true
			}
		}
		if se.Name.Space != constants.AppletNamespace {
			continue
		}
		if err := collect(view, d, se); err != nil {
			return nil, syntaxError(file, d, err)
		}
	}

	s := &serializer{
		html:           true,
		dropComments:   optimize,
		dropPrefixes:   prefixes,
		rewriteComment: rewriteInclude,
	}
	residual, err := s.run(newDecoder(data))
	if err != nil {
		return nil, &models.SourceError{File: file, Err: err}
	}
	out, err := compress.Compress(residual)
	if err != nil {
		return nil, err
	}
	view.Content.HTML = out
	return view, nil
}

func collect(view *HTMLView, d *xml.Decoder, se xml.StartElement) error {
	c := view.Content
	switch se.Name.Local {
	case "widget":
		w := &models.Widget{}
		if err := d.DecodeElement(w, &se); err != nil {
			return err
		}
		if err := w.Validate(); err != nil {
			return err
		}
		c.Widget = w
	case "state":
		st := &models.ViewState{}
		if err := d.DecodeElement(st, &se); err != nil {
			return err
		}
		c.State = st
	case "title":
		var t models.LocaleString
		if err := d.DecodeElement(&t, &se); err != nil {
			return err
		}
		t.Value = strings.TrimSpace(t.Value)
		c.Titles = append(c.Titles, t)
	case "bundle", "style", "demand":
		var v string
		if err := d.DecodeElement(&v, &se); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		switch se.Name.Local {
		case "bundle":
			c.Bundles = append(c.Bundles, v)
		case "style":
			c.Styles = append(c.Styles, v)
		default:
			view.Policies = append(view.Policies, v)
		}
	case "script":
		var s scriptElement
		if err := d.DecodeElement(&s, &se); err != nil {
			return err
		}
		c.Scripts = append(c.Scripts, models.ScriptReference{
			Reference: strings.TrimSpace(s.Reference),
			Static:    s.Static != "false",
		})
	default:
		return fmt.Errorf("unknown applet element %q", se.Name.Local)
	}
	return nil
}

type htmlPacker struct{}

func (htmlPacker) Extensions() []string { return []string{".html", ".htm"} }

func (htmlPacker) Process(src Source, optimize bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	view, err := ProcessHTML(file, data, optimize)
	if err != nil {
		return nil, err
	}
	return &models.AppletAsset{
		MimeType: "text/html",
		Policies: view.Policies,
		Content:  view.Content,
	}, nil
}
