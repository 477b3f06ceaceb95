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

package main

import (
	"encoding/hex"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"applet/internal/models"
)

type infoDocument struct {
	Kind                string             `yaml:"kind"`
	ToolVersion         string             `yaml:"toolVersion,omitempty"`
	Info                *models.AppletInfo `yaml:"info"`
	Hash                string             `yaml:"hash,omitempty"`
	Signed              bool               `yaml:"signed"`
	EmbeddedCertificate bool               `yaml:"embeddedCertificate"`
	Assets              []string           `yaml:"assets,omitempty"`
	Include             []*infoDocument    `yaml:"include,omitempty"`
}

func newInfoCommand(_ *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print package or solution metadata as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sol, err := readArtifact(args[0])
			if err != nil {
				return err
			}
			return writeInfo(cmd.OutOrStdout(), sol)
		},
	}
}

func packageInfo(kind string, p *models.AppletPackage) (*infoDocument, error) {
	doc := &infoDocument{
		Kind:                kind,
		ToolVersion:         p.Version,
		Info:                p.Meta,
		Hash:                hex.EncodeToString(p.Meta.Hash),
		Signed:              p.IsSigned(),
		EmbeddedCertificate: len(p.PublicKey) > 0,
	}
	m, err := p.Unpack()
	if err != nil {
		return nil, err
	}
	for _, a := range m.Assets {
		doc.Assets = append(doc.Assets, a.Name)
	}
	return doc, nil
}

func writeInfo(w io.Writer, sol *models.AppletSolution) error {
	kind := "package"
	if sol.IsSolution() {
		kind = "solution"
	}
	doc, err := packageInfo(kind, &sol.AppletPackage)
	if err != nil {
		return err
	}
	for _, inc := range sol.Include {
		incDoc, err := packageInfo("package", inc)
		if err != nil {
			return err
		}
		doc.Include = append(doc.Include, incDoc)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
