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

package utils

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/golang/glog"
)

func NeedUpgrade(curVersion, latestVersion string, sameVersionUpdate bool) bool {
	c := CompareVersions(curVersion, latestVersion)
	if sameVersionUpdate {
		return c <= 0
	}
	return c < 0
}

// CompareVersions orders two applet versions. Semantic versions compare by semver,
// anything else falls back to a numeric comparison of dotted segments.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	glog.V(3).Infof("non semver version compare %s %s", a, b)
	return compareSegments(a, b)
}

func compareSegments(a, b string) int {
	sa := strings.Split(a, ".")
	sb := strings.Split(b, ".")
	for i := 0; i < len(sa) || i < len(sb); i++ {
		var x, y string
		if i < len(sa) {
			x = sa[i]
		}
		if i < len(sb) {
			y = sb[i]
		}
		nx, errX := strconv.Atoi(x)
		ny, errY := strconv.Atoi(y)
		if x == "" {
			nx, errX = 0, nil
		}
		if y == "" {
			ny, errY = 0, nil
		}
		switch {
		case errX == nil && errY == nil:
			if nx != ny {
				if nx < ny {
					return -1
				}
				return 1
			}
		default:
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		}
	}
	return 0
}

// MaxVersion returns the index of the highest version, the first one on ties, or -1 when empty.
func MaxVersion(versions []string) int {
	best := -1
	for i, v := range versions {
		if best < 0 || CompareVersions(v, versions[best]) > 0 {
			best = i
		}
	}
	return best
}
