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

	"github.com/spf13/cobra"

	"applet/internal/signer"
)

func newCertCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Manage the signing certificate store",
	}
	cmd.AddCommand(newCertImportCommand(g))
	return cmd
}

func newCertImportCommand(g *globalOptions) *cobra.Command {
	var password, passwordFile string
	cmd := &cobra.Command{
		Use:   "import <file.pfx>",
		Short: "Import a PFX certificate into the store and print its thumbprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.environment()
			if err != nil {
				return err
			}
			pw, err := signer.ResolvePassword(password, passwordFile)
			if err != nil {
				return err
			}
			creds, err := signer.LoadPFX(args[0], pw)
			if err != nil {
				return err
			}
			thumbprint, err := env.certStore().Add(creds)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), thumbprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "PFX password")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "file whose first line is the PFX password")
	return cmd
}
