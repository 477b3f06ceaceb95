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

package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"applet/internal/constants"
)

const (
	ConfigFileName = "applet"
	ConfigFileExt  = "yaml"
	EnvPrefix      = "APPLET"
)

type RepositoryConfig struct {
	Cache    string   `mapstructure:"cache"`
	Remotes  []string `mapstructure:"remotes"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
}

type SigningConfig struct {
	CertStore string   `mapstructure:"cert_store"`
	Trusted   []string `mapstructure:"trusted"`
}

// NotifyConfig points at the NATS server that receives publish events. Empty URL disables it.
type NotifyConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type ServerConfig struct {
	Listen string       `mapstructure:"listen"`
	Data   string       `mapstructure:"data"`
	Www    string       `mapstructure:"www"`
	Access string       `mapstructure:"access"`
	Notify NotifyConfig `mapstructure:"notify"`
}

// AccessFile is the configured access file, or the one inside the data directory.
func (c ServerConfig) AccessFile() string {
	if c.Access != "" {
		return c.Access
	}
	return filepath.Join(c.Data, constants.AccessFileName)
}

type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Signing    SigningConfig    `mapstructure:"signing"`
	Server     ServerConfig     `mapstructure:"server"`
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		glog.Warningf("user home dir err:%s", err)
		return "."
	}
	return filepath.Join(home, constants.DefaultCacheDirName)
}

// New returns a viper instance with defaults, config file search paths and environment binding.
func New() *viper.Viper {
	v := viper.New()
	base := homeDir()

	v.SetDefault("repository.cache", filepath.Join(base, constants.CacheSubDir))
	v.SetDefault("repository.remotes", []string{})
	v.SetDefault("signing.cert_store", filepath.Join(base, constants.CertStoreSubDir))
	v.SetDefault("signing.trusted", []string{})
	v.SetDefault("server.listen", constants.APIServerListenAddress)
	v.SetDefault("server.data", constants.DataPath)
	v.SetDefault("server.www", constants.WwwPath)
	v.SetDefault("server.access", "")
	v.SetDefault("server.notify.url", "")
	v.SetDefault("server.notify.subject", constants.NotifySubject)

	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileExt)
	v.AddConfigPath(".")
	v.AddConfigPath(base)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (file, or the search paths when empty) into a Config.
// A missing config file on the search paths is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		glog.V(2).Infof("using config file %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads an optional .env file into the process environment.
func LoadDotEnv(file string) {
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		glog.Warningf("load %s err:%s", file, err)
	}
}
