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

// Package cdss transpiles the clinical decision support text DSL into its XML library form.
package cdss

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type Header struct {
	Name        string `xml:"name,attr"`
	ID          string `xml:"id,attr,omitempty"`
	Status      string `xml:"status,attr,omitempty"`
	Description string `xml:"description,omitempty"`
}

type Fact struct {
	Header
	Expression string `xml:"expression"`
}

type Rule struct {
	Header
	When string `xml:"when"`
	Then string `xml:"then"`
}

type Library struct {
	XMLName xml.Name `xml:"CdssLibrary"`
	Header
	Includes []string `xml:"include"`
	Facts    []Fact   `xml:"fact"`
	Rules    []Rule   `xml:"rule"`
}

func (l *Library) Marshal() ([]byte, error) {
	return xml.Marshal(l)
}

type state int

const (
	stateTop state = iota
	stateLibrary
	stateFactHeader
	stateFactBody
	stateRuleHeader
	stateRuleWhen
	stateRuleThen
	stateDone
)

type parser struct {
	line  int
	state state
	lib   *Library
	fact  *Fact
	rule  *Rule
	body  []string
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

// Transpile parses one library definition.
func Transpile(r io.Reader) (*Library, error) {
	p := &parser{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.line++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if err := p.handle(line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if p.state != stateDone {
		return nil, p.errorf("unexpected end of input, missing \"end library\"")
	}
	return p.lib, nil
}

func (p *parser) handle(line string) error {
	switch p.state {
	case stateTop:
		name, ok := cutKeyword(line, "define library")
		if !ok {
			return p.errorf("expected \"define library\"")
		}
		n, err := p.quoted(name)
		if err != nil {
			return err
		}
		p.lib = &Library{Header: Header{Name: n}}
		p.state = stateLibrary
	case stateLibrary:
		return p.libraryLine(line)
	case stateFactHeader:
		if line == "as" {
			p.state = stateFactBody
			return nil
		}
		return p.having(&p.fact.Header, line)
	case stateFactBody:
		if line == "end fact" {
			p.fact.Expression = p.flush()
			p.lib.Facts = append(p.lib.Facts, *p.fact)
			p.fact = nil
			p.state = stateLibrary
			return nil
		}
		p.body = append(p.body, line)
	case stateRuleHeader:
		if line == "when" {
			p.state = stateRuleWhen
			return nil
		}
		return p.having(&p.rule.Header, line)
	case stateRuleWhen:
		if line == "then" {
			p.rule.When = p.flush()
			if p.rule.When == "" {
				return p.errorf("rule %q has an empty when clause", p.rule.Name)
			}
			p.state = stateRuleThen
			return nil
		}
		p.body = append(p.body, line)
	case stateRuleThen:
		if line == "end rule" {
			p.rule.Then = p.flush()
			p.lib.Rules = append(p.lib.Rules, *p.rule)
			p.rule = nil
			p.state = stateLibrary
			return nil
		}
		p.body = append(p.body, line)
	case stateDone:
		return p.errorf("unexpected content after \"end library\"")
	}
	return nil
}

func (p *parser) libraryLine(line string) error {
	if line == "end library" {
		p.state = stateDone
		return nil
	}
	if v, ok := cutKeyword(line, "include"); ok {
		p.lib.Includes = append(p.lib.Includes, p.value(v))
		return nil
	}
	if v, ok := cutKeyword(line, "define fact"); ok {
		n, err := p.quoted(v)
		if err != nil {
			return err
		}
		p.fact = &Fact{Header: Header{Name: n}}
		p.state = stateFactHeader
		return nil
	}
	if v, ok := cutKeyword(line, "define rule"); ok {
		n, err := p.quoted(v)
		if err != nil {
			return err
		}
		p.rule = &Rule{Header: Header{Name: n}}
		p.state = stateRuleHeader
		return nil
	}
	return p.having(&p.lib.Header, line)
}

func (p *parser) having(h *Header, line string) error {
	rest, ok := cutKeyword(line, "having")
	if !ok {
		return p.errorf("unexpected %q", line)
	}
	key, value, _ := strings.Cut(rest, " ")
	value = p.value(strings.TrimSpace(value))
	switch key {
	case "id":
		h.ID = value
	case "status":
		h.Status = value
	case "description":
		h.Description = value
	default:
		return p.errorf("unknown property %q", key)
	}
	return nil
}

func (p *parser) flush() string {
	s := strings.Join(p.body, "\n")
	p.body = nil
	return s
}

func (p *parser) quoted(s string) (string, error) {
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", p.errorf("expected quoted name, got %s", s)
	}
	return v, nil
}

// value strips <angle> brackets or quotes around a property value.
func (p *parser) value(s string) string {
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return s[1 : len(s)-1]
	}
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return s
}

func cutKeyword(line, keyword string) (string, bool) {
	if !strings.HasPrefix(line, keyword) {
		return "", false
	}
	rest := line[len(keyword):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
