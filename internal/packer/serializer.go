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
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"applet/internal/models"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

var rawTextElements = map[string]bool{"script": true, "style": true}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// serializer writes raw tokens back out as markup, keeping prefixes as written.
type serializer struct {
	html           bool
	dropComments   bool
	dropWhitespace bool
	dropPrefixes   map[string]bool
	rewriteComment func(string) (string, bool)
	out            bytes.Buffer
	pending        *xml.StartElement
	rawText        int
	skipDepth      int
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (s *serializer) dropped(n xml.Name) bool {
	return n.Space != "" && s.dropPrefixes[n.Space]
}

func (s *serializer) flushPending(selfClose bool) {
	if s.pending == nil {
		return
	}
	se := s.pending
	s.pending = nil
	s.out.WriteByte('<')
	s.out.WriteString(qualified(se.Name))
	for _, a := range se.Attr {
		if a.Name.Space == "xmlns" && s.dropPrefixes[a.Name.Local] || s.dropped(a.Name) {
			continue
		}
		s.out.WriteByte(' ')
		s.out.WriteString(qualified(a.Name))
		s.out.WriteString(`="`)
		s.out.WriteString(attrEscaper.Replace(a.Value))
		s.out.WriteByte('"')
	}
	if selfClose {
		s.out.WriteString("/>")
		return
	}
	s.out.WriteByte('>')
}

func (s *serializer) write(tok xml.Token) {
	if s.skipDepth > 0 {
		switch tok.(type) {
		case xml.StartElement:
			s.skipDepth++
		case xml.EndElement:
			s.skipDepth--
		}
		return
	}

	switch t := tok.(type) {
	case xml.StartElement:
		if s.dropped(t.Name) {
			s.flushPending(false)
			s.skipDepth = 1
			return
		}
		s.flushPending(false)
		se := t.Copy()
		s.pending = &se
		if s.html && rawTextElements[strings.ToLower(t.Name.Local)] {
			s.rawText++
		}
	case xml.EndElement:
		if s.html && rawTextElements[strings.ToLower(t.Name.Local)] {
			s.rawText--
		}
		if s.pending != nil {
			if !s.html || voidElements[strings.ToLower(t.Name.Local)] {
				s.flushPending(true)
				return
			}
			s.flushPending(false)
		}
		s.out.WriteString("</")
		s.out.WriteString(qualified(t.Name))
		s.out.WriteByte('>')
	case xml.CharData:
		if s.dropWhitespace && len(bytes.TrimSpace(t)) == 0 {
			return
		}
		s.flushPending(false)
		if s.rawText > 0 {
			s.out.Write(t)
			return
		}
		s.out.WriteString(textEscaper.Replace(string(t)))
	case xml.Comment:
		text := string(t)
		if s.rewriteComment != nil {
			if r, keep := s.rewriteComment(text); keep {
				s.flushPending(false)
				s.out.WriteString("<!--" + r + "-->")
				return
			}
		}
		if s.dropComments {
			return
		}
		s.flushPending(false)
		s.out.WriteString("<!--" + text + "-->")
	case xml.ProcInst:
		if t.Target == "xml" {
			return
		}
		s.flushPending(false)
		s.out.WriteString("<?" + t.Target + " " + string(t.Inst) + "?>")
	case xml.Directive:
		s.flushPending(false)
		s.out.WriteString("<!" + string(t) + ">")
	}
}

func (s *serializer) run(d *xml.Decoder) ([]byte, error) {
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		s.write(tok)
	}
	s.flushPending(false)
	return s.out.Bytes(), nil
}

func newDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true
	d.Entity = xml.HTMLEntity
	return d
}

func syntaxError(file string, d *xml.Decoder, err error) error {
	line, col := d.InputPos()
	return &models.SourceError{File: file, Line: line, Column: col, Err: err}
}
