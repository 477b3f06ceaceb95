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

	"applet/internal/builder"
	"applet/internal/packer"
)

type packOptions struct {
	deliveryOptions
	signOptions
	source   string
	optimize bool
	version  string
}

func newPackCommand(g *globalOptions) *cobra.Command {
	o := &packOptions{}
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack an applet source tree into a package",
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

			b := builder.New(packer.NewRegistry(), s, env.resolver, env.resolver)
			_, err = b.Build(cmd.Context(), builder.Options{
				Delivery: o.delivery(env),
				Source:   o.source,
				Optimize: o.optimize,
				Version:  o.version,
			})
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&o.source, "source", "s", ".", "source directory, manifest.xml path or archive")
	fs.BoolVar(&o.optimize, "optimize", false, "minify scripts, styles and markup")
	fs.StringVar(&o.version, "version", "", "override the manifest version")
	o.deliveryOptions.addFlags(fs)
	o.signOptions.addFlags(fs)
	return cmd
}
