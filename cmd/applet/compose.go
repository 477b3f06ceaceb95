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
	"github.com/spf13/cobra"

	"applet/internal/composer"
	"applet/internal/models"
)

type composeOptions struct {
	deliveryOptions
	signOptions
	source            string
	version           string
	dependencyVersion string
	resignUnsigned    bool
	i18n              string
}

func newComposeCommand(g *globalOptions) *cobra.Command {
	o := &composeOptions{}
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a solution from a manifest and its resolved dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.environment()
			if err != nil {
				return err
			}
			s, err := o.signer(env)
			if err != nil {
				return err
			}
			m, err := models.ReadManifestFile(manifestPath(o.source))
			if err != nil {
				return err
			}

			c := composer.New(env.resolver, s, env.resolver, env.resolver)
			_, err = c.Compose(cmd.Context(), m, composer.Options{
				Delivery:          o.delivery(env),
				Version:           o.version,
				VersionOverride:   o.dependencyVersion,
				ResignUnsigned:    o.resignUnsigned,
				TranslationOutput: o.i18n,
			})
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&o.source, "source", "s", ".", "solution manifest.xml or the directory holding it")
	fs.StringVar(&o.version, "version", "", "override the solution version")
	fs.StringVar(&o.dependencyVersion, "dependency-version", "", "version tried first for dependencies without a pinned version")
	fs.BoolVar(&o.resignUnsigned, "resign-unsigned", false, "sign included dependencies that are unsigned")
	fs.StringVar(&o.i18n, "i18n", "", "write the translation matrix as CSV to this file")
	o.deliveryOptions.addFlags(fs)
	o.signOptions.addFlags(fs)
	return cmd
}
