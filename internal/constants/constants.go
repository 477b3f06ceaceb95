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

package constants

const (
	AppletNamespace = "http://applet.dev/applet"

	ManifestFileName = "manifest.xml"
	PackageExtension = ".pak"
	ToolVersion      = "1.0.0"

	DefaultMimeType = "application/x-octet-stream"
	LatestVersion   = "latest"
)

const (
	APIServerListenAddress = ":9200"

	DataPath       = "./data"
	WwwPath        = "./www"
	AccessFileName = ".access"
	IndexDbName    = "index.db"
	DefaultIndex   = "index.html"

	NotifySubject = "applet.packages.published"

	DefaultPageSize = 100
	DefaultOffset   = 0
)

const (
	HeaderETag               = "ETag"
	HeaderLocation           = "Location"
	HeaderLastModified       = "Last-Modified"
	HeaderContentDisposition = "Content-Disposition"
	HeaderTotalCount         = "X-Total-Count"

	QueryOffset = "_offset"
	QueryCount  = "_count"
)

const (
	ExitError           = 1
	ExitSigningFailure  = 232
	DefaultCacheDirName = ".applet"
	CacheSubDir         = "cache"
	CertStoreSubDir     = "certs"
)
