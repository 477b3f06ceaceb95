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
	"github.com/golang/glog"
	"github.com/tidwall/gjson"

	"applet/internal/models"
)

type jsonPacker struct{}

func (jsonPacker) Extensions() []string { return []string{".json"} }

func (jsonPacker) Process(src Source, _ bool) (*models.AppletAsset, error) {
	file := src.Path()
	data, err := readSource(file)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		glog.Warningf("%s is not valid json, packing as is", file)
	}
	return binaryAsset(file, "application/json", data)
}
