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
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"applet/internal/models"
	"applet/internal/signer"
)

func newVerifyCommand(g *globalOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check the hash, signature and publisher of a package or solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.environment()
			if err != nil {
				return err
			}
			sol, err := readArtifact(args[0])
			if err != nil {
				return err
			}

			v := &signer.Verifier{Trusted: env.cfg.Signing.Trusted, Store: env.certStore()}
			if err := verifyArtifact(v, sol, strict); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: signed by %s, verified\n", sol.Meta.ID, sol.Meta.Version, sol.Meta.PublicKeyToken)
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "also require every included package to verify")
	return cmd
}

func verifyArtifact(v *signer.Verifier, sol *models.AppletSolution, strict bool) error {
	if !sol.IsSolution() {
		return v.VerifyPackage(&sol.AppletPackage)
	}
	if err := v.VerifySolution(sol); err != nil {
		return err
	}
	for _, inc := range sol.Include {
		err := v.VerifyPackage(inc)
		if err == nil {
			continue
		}
		if strict {
			return fmt.Errorf("included %s: %w", inc.Meta.Reference(), err)
		}
		glog.Warningf("included %s does not verify err:%s", inc.Meta.Reference(), err)
	}
	return nil
}
