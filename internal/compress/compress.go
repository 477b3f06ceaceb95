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

package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// Magic prefixes every compressed payload: asset content, manifest blobs and package files.
var Magic = []byte("LZIP")

const dictCap = 1 << 20

func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// Compress returns Magic followed by an LZMA stream of data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Magic)

	w, err := lzma.WriterConfig{DictCap: dictCap}.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create lzma writer: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	return buf.Bytes(), nil
}

func Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return nil, fmt.Errorf("missing %q marker", Magic)
	}

	r, err := lzma.NewReader(bytes.NewReader(data[len(Magic):]))
	if err != nil {
		return nil, fmt.Errorf("open lzma stream: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	return out, nil
}

// DecompressIfNeeded returns data unchanged unless it carries the Magic marker.
func DecompressIfNeeded(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	return Decompress(data)
}
