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

type ListResult struct {
	Items      any   `json:"items"`
	TotalItems int   `json:"totalItems"`
	TotalCount int64 `json:"totalCount,omitempty"`
	Offset     int   `json:"offset"`
}

func NewListResultWithCount[T any](items []T, count int64, offset int) *ListResult {
	return &ListResult{
		Items:      items,
		TotalItems: len(items),
		TotalCount: count,
		Offset:     offset,
	}
}

// PackageEntry is the repository's metadata record for one stored id+version.
type PackageEntry struct {
	ID             string            `json:"id"`
	Version        string            `json:"version"`
	Author         string            `json:"author,omitempty"`
	Names          []LocaleString    `json:"name,omitempty"`
	Dependencies   []AppletReference `json:"dependency,omitempty"`
	Hash           string            `json:"hash,omitempty"`
	PublicKeyToken string            `json:"publicKeyToken,omitempty"`
	TimeStamp      int64             `json:"ts"`
	Solution       bool              `json:"solution,omitempty"`
	Digest         string            `json:"digest"`
	Size           int64             `json:"size"`
	Path           string            `json:"-"`
}

func (e *PackageEntry) DisplayName() string {
	return displayName(e.Names, e.ID)
}
