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
	"encoding/xml"
	"fmt"
	"strings"

	"applet/internal/compress"
)

// AssetContent is one of BinaryContent, TextContent, *HTMLContent or VirtualContent.
type AssetContent interface {
	Render() ([]byte, error)
	encode(doc *assetDocument)
}

type BinaryContent []byte

func (c BinaryContent) Render() ([]byte, error) {
	return compress.DecompressIfNeeded(c)
}

func (c BinaryContent) encode(doc *assetDocument) {
	b := Blob(c)
	doc.Binary = &b
}

type TextContent string

func (c TextContent) Render() ([]byte, error) {
	return []byte(c), nil
}

func (c TextContent) encode(doc *assetDocument) {
	s := string(c)
	doc.Text = &s
}

// VirtualContent points at another asset of the same manifest.
type VirtualContent struct {
	Target string
}

func (c VirtualContent) Render() ([]byte, error) {
	return nil, fmt.Errorf("%s: %w", c.Target, ErrVirtualContent)
}

func (c VirtualContent) encode(doc *assetDocument) {
	t := c.Target
	doc.Virtual = &t
}

type WidgetType string

const (
	WidgetPanel WidgetType = "Panel"
	WidgetTab   WidgetType = "Tab"
)

type WidgetSize string

const (
	WidgetSmall  WidgetSize = "Small"
	WidgetMedium WidgetSize = "Medium"
	WidgetLarge  WidgetSize = "Large"
)

type WidgetViewType string

const (
	WidgetViewEdit      WidgetViewType = "Edit"
	WidgetViewSetting   WidgetViewType = "Setting"
	WidgetViewAlternate WidgetViewType = "Alternate"
)

type WidgetView struct {
	Type     WidgetViewType `xml:"type,attr"`
	Policies []string       `xml:"demand"`
}

type Widget struct {
	Name         string         `xml:"name,attr"`
	Type         WidgetType     `xml:"type,attr,omitempty"`
	Size         WidgetSize     `xml:"size,attr,omitempty"`
	Context      string         `xml:"context,attr,omitempty"`
	Priority     int            `xml:"priority,attr,omitempty"`
	Order        int            `xml:"order,attr,omitempty"`
	MaxStack     int            `xml:"maxStack,attr,omitempty"`
	Icon         string         `xml:"icon,omitempty"`
	Controller   string         `xml:"controller,omitempty"`
	Descriptions []LocaleString `xml:"description"`
	Guards       []string       `xml:"guard"`
	Policies     []string       `xml:"demand"`
	Views        []WidgetView   `xml:"view"`
}

func (w *Widget) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("widget name is required")
	}
	switch w.Type {
	case "", WidgetPanel, WidgetTab:
	default:
		return fmt.Errorf("widget %s: invalid type %q", w.Name, w.Type)
	}
	switch w.Size {
	case "", WidgetSmall, WidgetMedium, WidgetLarge:
	default:
		return fmt.Errorf("widget %s: invalid size %q", w.Name, w.Size)
	}
	for _, v := range w.Views {
		switch v.Type {
		case WidgetViewEdit, WidgetViewSetting, WidgetViewAlternate:
		default:
			return fmt.Errorf("widget %s: invalid view type %q", w.Name, v.Type)
		}
	}
	return nil
}

type ViewStateView struct {
	Name       string `xml:"name,attr"`
	Controller string `xml:"controller,omitempty"`
}

type ViewState struct {
	Name     string          `xml:"name,attr"`
	Abstract bool            `xml:"abstract,attr,omitempty"`
	Route    string          `xml:"url,omitempty"`
	Views    []ViewStateView `xml:"view"`
}

type ScriptReference struct {
	Reference string `xml:",chardata"`
	Static    bool   `xml:"static,attr"`
}

// HTMLContent holds a processed HTML view: the metadata pulled from its private
// elements and the compressed markup with those elements removed.
type HTMLContent struct {
	Titles  []LocaleString    `xml:"title"`
	Bundles []string          `xml:"bundle"`
	Scripts []ScriptReference `xml:"script"`
	Styles  []string          `xml:"style"`
	Widget  *Widget           `xml:"widget"`
	State   *ViewState        `xml:"state"`
	HTML    Blob              `xml:"html"`
}

func (c *HTMLContent) Render() ([]byte, error) {
	return compress.DecompressIfNeeded(c.HTML)
}

func (c *HTMLContent) encode(doc *assetDocument) {
	doc.HTML = c
}

type AppletAsset struct {
	Name     string
	MimeType string
	Policies []string
	Content  AssetContent
}

func (a *AppletAsset) Render() ([]byte, error) {
	if a.Content == nil {
		return nil, nil
	}
	return a.Content.Render()
}

func (a *AppletAsset) IsHTML() bool {
	_, ok := a.Content.(*HTMLContent)
	return ok
}

type assetDocument struct {
	Name     string       `xml:"name,attr"`
	MimeType string       `xml:"mimeType,attr,omitempty"`
	Policies []string     `xml:"demand"`
	Binary   *Blob        `xml:"contentBin"`
	Text     *string      `xml:"contentText"`
	HTML     *HTMLContent `xml:"contentHtml"`
	Virtual  *string      `xml:"virtual"`
}

func (a AppletAsset) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	doc := assetDocument{
		Name:     a.Name,
		MimeType: a.MimeType,
		Policies: a.Policies,
	}
	if a.Content != nil {
		a.Content.encode(&doc)
	}
	return e.EncodeElement(doc, start)
}

func (a *AppletAsset) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var doc assetDocument
	if err := d.DecodeElement(&doc, &start); err != nil {
		return err
	}
	a.Name = doc.Name
	a.MimeType = doc.MimeType
	a.Policies = doc.Policies
	switch {
	case doc.Binary != nil:
		a.Content = BinaryContent(*doc.Binary)
	case doc.Text != nil:
		a.Content = TextContent(*doc.Text)
	case doc.HTML != nil:
		a.Content = doc.HTML
	case doc.Virtual != nil:
		a.Content = VirtualContent{Target: strings.TrimSpace(*doc.Virtual)}
	}
	return nil
}
