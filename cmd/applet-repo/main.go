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
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"applet/internal/auth"
	"applet/internal/conf"
	"applet/internal/constants"
	"applet/pkg/apiserver"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cmd := newRepoCommand()
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	_ = flag.CommandLine.Parse(nil)

	err := cmd.Execute()
	if err != nil {
		glog.Errorf("%v", err)
	}
	glog.Flush()
	if err != nil {
		os.Exit(constants.ExitError)
	}
}

type repoOptions struct {
	configFile string
	envFile    string
	v          *viper.Viper
}

func (o *repoOptions) load() (*conf.Config, error) {
	conf.LoadDotEnv(o.envFile)
	return conf.Load(o.v, o.configFile)
}

func newRepoCommand() *cobra.Command {
	o := &repoOptions{v: conf.New()}

	cmd := &cobra.Command{
		Use:           "applet-repo",
		Short:         "Applet package repository server",
		Long:          `applet-repo stores published applet packages and serves them over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configFile, "config", "", "config file (default applet.yaml in . or ~/.applet)")
	pf.StringVar(&o.envFile, "env-file", ".env", "optional dotenv file loaded before the config")
	pf.String("listen", "", "listen address")
	pf.String("data", "", "package data directory")
	pf.String("www", "", "static content directory")
	pf.String("access", "", "access file holding publisher credentials")

	for _, key := range []string{"listen", "data", "www", "access"} {
		_ = o.v.BindPFlag("server."+key, pf.Lookup(key))
	}

	cmd.AddCommand(newServeCommand(o), newUserAddCommand(o))
	return cmd
}

func newServeCommand(o *repoOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the repository server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			return Run(cfg.Server)
		},
	}
}

func Run(cfg conf.ServerConfig) error {
	s, err := apiserver.New(cfg)
	if err != nil {
		return err
	}
	if err = s.PrepareRun(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		glog.Infof("Start listening on %s", s.Server.Addr)
		errCh <- s.Run()
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		_ = s.Close()
		return err
	case sig := <-c:
		glog.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newUserAddCommand(o *repoOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "useradd <name>",
		Short: "Add a publisher to the access file and print its generated secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			secret, err := auth.NewAccessFile(cfg.Server.AccessFile()).AddUser(args[0])
			if err != nil {
				return err
			}
			glog.Infof("added user %s to %s", args[0], cfg.Server.AccessFile())
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}
