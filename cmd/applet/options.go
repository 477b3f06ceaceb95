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
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"applet/internal/builder"
	"applet/internal/conf"
	"applet/internal/constants"
	"applet/internal/models"
	"applet/internal/repository"
	"applet/internal/signer"
)

type environment struct {
	cfg      *conf.Config
	resolver *repository.Resolver
}

func (g *globalOptions) environment() (*environment, error) {
	cfg, err := conf.Load(g.v, g.configFile)
	if err != nil {
		return nil, err
	}

	var cache *repository.Cache
	if cfg.Repository.Cache != "" {
		cache = repository.NewCache(cfg.Repository.Cache)
	}
	var remotes []repository.Source
	for _, u := range cfg.Repository.Remotes {
		remotes = append(remotes, repository.NewRemote(u, cfg.Repository.User, cfg.Repository.Password))
	}
	r := repository.NewResolver(cache, remotes...).
		WithCredentials(cfg.Repository.User, cfg.Repository.Password)
	return &environment{cfg: cfg, resolver: r}, nil
}

func (e *environment) certStore() *signer.CertStore {
	return &signer.CertStore{Dir: e.cfg.Signing.CertStore}
}

type signOptions struct {
	sign         bool
	certificate  string
	password     string
	passwordFile string
	thumbprint   string
	embedCert    bool
}

func (o *signOptions) addFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.sign, "sign", false, "sign the result")
	fs.StringVar(&o.certificate, "certificate", "", "PFX file holding the signing certificate and key")
	fs.StringVar(&o.password, "password", "", "PFX password")
	fs.StringVar(&o.passwordFile, "password-file", "", "file whose first line is the PFX password")
	fs.StringVar(&o.thumbprint, "thumbprint", "", "thumbprint of a certificate in the certificate store")
	fs.BoolVar(&o.embedCert, "embed-cert", false, "embed the signing certificate in the result")
}

func (o *signOptions) enabled() bool {
	return o.sign || o.certificate != "" || o.thumbprint != ""
}

// credentials loads the signing certificate from a PFX file or the certificate store.
func (o *signOptions) credentials(env *environment) (*signer.Credentials, error) {
	switch {
	case o.certificate != "":
		password, err := signer.ResolvePassword(o.password, o.passwordFile)
		if err != nil {
			return nil, fmt.Errorf("certificate password: %v: %w", err, models.ErrSecurity)
		}
		return signer.LoadPFX(o.certificate, password)
	case o.thumbprint != "":
		creds, err := env.certStore().Find(o.thumbprint)
		if err != nil {
			return nil, fmt.Errorf("certificate %s: %v: %w", o.thumbprint, err, models.ErrSecurity)
		}
		return creds, nil
	default:
		return nil, fmt.Errorf("signing needs --certificate or --thumbprint: %w", models.ErrSecurity)
	}
}

// signer returns nil when signing was not requested.
func (o *signOptions) signer(env *environment) (*signer.Signer, error) {
	if !o.enabled() {
		return nil, nil
	}
	creds, err := o.credentials(env)
	if err != nil {
		return nil, err
	}
	return signer.New(creds, o.embedCert)
}

type deliveryOptions struct {
	output        string
	install       bool
	publish       bool
	publishServer string
}

func (o *deliveryOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.output, "output", "o", "", "output file")
	fs.BoolVar(&o.install, "install", false, "install the result into the local cache")
	fs.BoolVar(&o.publish, "publish", false, "publish the result to a repository server")
	fs.StringVar(&o.publishServer, "publish-server", "", "repository server url, defaults to the first remote")
}

func (o *deliveryOptions) delivery(env *environment) builder.Delivery {
	d := builder.Delivery{
		Output:        o.output,
		Install:       o.install,
		Publish:       o.publish,
		PublishServer: o.publishServer,
	}
	if d.Publish && d.PublishServer == "" && len(env.cfg.Repository.Remotes) > 0 {
		d.PublishServer = env.cfg.Repository.Remotes[0]
	}
	if d.Output == "" && !d.Install && !d.Publish {
		glog.Warningf("no --output, --install or --publish given, the result is discarded")
	}
	return d
}

// manifestPath accepts a manifest file or a directory holding one.
func manifestPath(source string) string {
	if fi, err := os.Stat(source); err == nil && fi.IsDir() {
		return filepath.Join(source, constants.ManifestFileName)
	}
	return source
}

func readArtifact(file string) (*models.AppletSolution, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	sol, err := models.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return sol, nil
}

// artifact returns the solution, or its package when the document is a plain package.
func artifact(sol *models.AppletSolution) models.Artifact {
	if sol.IsSolution() {
		return sol
	}
	return &sol.AppletPackage
}
