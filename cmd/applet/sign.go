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
	"bytes"
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"applet/pkg/utils"
)

type signCommandOptions struct {
	signOptions
	output string
}

func newSignCommand(g *globalOptions) *cobra.Command {
	o := &signCommandOptions{}
	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Sign an existing package or solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.environment()
			if err != nil {
				return err
			}
			o.sign = true
			s, err := o.signer(env)
			if err != nil {
				return err
			}

			sol, err := readArtifact(args[0])
			if err != nil {
				return err
			}
			if sol.IsSolution() {
				err = s.SignSolution(sol)
			} else {
				err = s.SignPackage(&sol.AppletPackage)
			}
			if err != nil {
				return err
			}

			data, err := artifact(sol).Marshal()
			if err != nil {
				return err
			}
			output := o.output
			if output == "" {
				output = args[0]
			}
			if _, _, err := utils.AtomicWriteFile(output, bytes.NewReader(data), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			glog.Infof("wrote signed %s %s to %s", sol.Meta.ID, sol.Meta.Version, output)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&o.output, "output", "o", "", "output file, defaults to rewriting the input")
	o.signOptions.addFlags(fs)
	return cmd
}
