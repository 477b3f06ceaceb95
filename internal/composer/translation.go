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

package composer

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/language"

	"applet/internal/models"
)

// TranslationMatrix has one row per string key and one column per locale.
type TranslationMatrix struct {
	Locales []string
	Keys    []string
	Values  map[string]map[string]string
}

func canonicalLocale(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// NewTranslationMatrix collects the string tables of manifests. Keys and locales keep
// their first seen order and the first value seen for a cell wins.
func NewTranslationMatrix(manifests []*models.AppletManifest) *TranslationMatrix {
	tm := &TranslationMatrix{Values: map[string]map[string]string{}}
	seenLocale := map[string]bool{}
	for _, m := range manifests {
		for _, table := range m.Strings {
			locale := canonicalLocale(table.Language)
			if !seenLocale[locale] {
				seenLocale[locale] = true
				tm.Locales = append(tm.Locales, locale)
			}
			for _, s := range table.Strings {
				row, ok := tm.Values[s.Key]
				if !ok {
					row = map[string]string{}
					tm.Values[s.Key] = row
					tm.Keys = append(tm.Keys, s.Key)
				}
				if _, ok := row[locale]; !ok {
					row[locale] = s.Value
				}
			}
		}
	}
	return tm
}

func WriteTranslationCSV(w io.Writer, tm *TranslationMatrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"key"}, tm.Locales...)); err != nil {
		return err
	}
	for _, key := range tm.Keys {
		record := []string{key}
		for _, locale := range tm.Locales {
			record = append(record, tm.Values[key][locale])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
