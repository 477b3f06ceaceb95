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

package store

import (
	"sort"
	"strings"

	"github.com/thoas/go-funk"

	"applet/internal/models"
	"applet/pkg/utils"
)

// Query filters entries by field. Values of one field are OR-ed, fields are AND-ed.
// A value ending in * matches by prefix.
type Query struct {
	Filters map[string][]string
	Offset  int
	Count   int
}

var queryFields = map[string]func(e *models.PackageEntry) []string{
	"id":             func(e *models.PackageEntry) []string { return []string{e.ID} },
	"author":         func(e *models.PackageEntry) []string { return []string{e.Author} },
	"version":        func(e *models.PackageEntry) []string { return []string{e.Version} },
	"publicKeyToken": func(e *models.PackageEntry) []string { return []string{e.PublicKeyToken} },
	"name": func(e *models.PackageEntry) []string {
		return funk.Map(e.Names, func(n models.LocaleString) string { return n.Value }).([]string)
	},
}

func IsQueryField(name string) bool {
	_, ok := queryFields[name]
	return ok
}

func matchValue(pattern, value string) bool {
	if p, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(p))
	}
	return strings.EqualFold(pattern, value)
}

func (q *Query) matches(e *models.PackageEntry) bool {
	for field, patterns := range q.Filters {
		get, ok := queryFields[field]
		if !ok || len(patterns) == 0 {
			continue
		}
		values := get(e)
		if !anyMatch(patterns, values) {
			return false
		}
	}
	return true
}

func anyMatch(patterns, values []string) bool {
	for _, p := range patterns {
		for _, v := range values {
			if matchValue(p, v) {
				return true
			}
		}
	}
	return false
}

// SortEntries orders by version descending, then display name, author and id.
func SortEntries(entries []*models.PackageEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := utils.CompareVersions(a.Version, b.Version); c != 0 {
			return c > 0
		}
		if a.DisplayName() != b.DisplayName() {
			return a.DisplayName() < b.DisplayName()
		}
		if a.Author != b.Author {
			return a.Author < b.Author
		}
		return a.ID < b.ID
	})
}

// Query returns one page of matching entries and the total number of matches.
func (s *Store) Query(q Query) ([]*models.PackageEntry, int, error) {
	all, err := s.All()
	if err != nil {
		return nil, 0, err
	}
	matched := funk.Filter(all, q.matches).([]*models.PackageEntry)
	SortEntries(matched)

	total := len(matched)
	if q.Offset >= total {
		return []*models.PackageEntry{}, total, nil
	}
	end := total
	if q.Count > 0 && q.Offset+q.Count < total {
		end = q.Offset + q.Count
	}
	return matched[q.Offset:end], total, nil
}
