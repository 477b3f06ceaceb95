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
	"errors"
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"applet/internal/conf"
	"applet/internal/constants"
	"applet/internal/models"
)

func main() {
	cmd := newAppletCommand()
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	_ = flag.CommandLine.Parse(nil)

	err := cmd.Execute()
	if err != nil {
		glog.Errorf("%v", err)
	}
	glog.Flush()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps signing and trust failures to a dedicated code.
func exitCode(err error) int {
	if errors.Is(err, models.ErrSecurity) {
		return constants.ExitSigningFailure
	}
	return constants.ExitError
}

type globalOptions struct {
	configFile string
	v          *viper.Viper
}

func newAppletCommand() *cobra.Command {
	g := &globalOptions{v: conf.New()}

	cmd := &cobra.Command{
		Use:           "applet",
		Short:         "Build, sign and compose applet packages",
		Long:          `applet packs an applet source tree into a signed package, composes solutions from repository packages and inspects the results`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "config file (default applet.yaml in . or ~/.applet)")
	pf.String("cache", "", "local package cache directory")
	pf.StringSlice("remote", nil, "remote repository url, repeatable, searched in order")
	pf.String("user", "", "repository user for publishing")
	pf.String("repo-password", "", "repository password for publishing")
	pf.String("cert-store", "", "certificate store directory")
	pf.StringSlice("trusted", nil, "trusted publisher thumbprint, repeatable")

	for key, name := range map[string]string{
		"repository.cache":    "cache",
		"repository.remotes":  "remote",
		"repository.user":     "user",
		"repository.password": "repo-password",
		"signing.cert_store":  "cert-store",
		"signing.trusted":     "trusted",
	} {
		_ = g.v.BindPFlag(key, pf.Lookup(name))
	}

	cmd.AddCommand(
		newPackCommand(g),
		newComposeCommand(g),
		newSignCommand(g),
		newVerifyCommand(g),
		newInfoCommand(g),
		newCertCommand(g),
	)
	return cmd
}
