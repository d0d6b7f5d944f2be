// Copyright 2025 Antfly, Inc.
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

// Package cmd holds the corenlp command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/antflydb/antfly-go/libaf/logging"
	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set by main from build flags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "corenlp",
	Short: "Named entity extraction for pipeline records",
	Long: `corenlp annotates text with an in-process dictionary engine or a remote
CoreNLP-compatible server and reduces the annotations to named entities.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		corenlp.Version = Version
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-style", "", "log output style")

	pf.String("annotators", "", "comma separated annotators (default "+corenlp.DefaultAnnotators+")")
	pf.String("threads", "", "number of concurrent annotations")
	pf.String("gazetteer-files", "", "comma separated extra gazetteer files for the in-process engine")
	pf.String("json-props", "", "JSON object of additional NLP properties")

	pf.String("host", "", "remote annotation server host; empty annotates in-process")
	pf.String("port", "9000", "remote annotation server port")
	pf.String("api-key", "", "remote basic auth key")
	pf.String("api-secret", "", "remote basic auth secret")
	pf.String("remote-path", "", "request path on the remote server")
	pf.Duration("remote-timeout", 0, "timeout of one remote attempt (0 = 60s)")
	pf.Duration("entity-cache-ttl", 0, "entity cache TTL (0 = default, negative disables)")

	mustBindPFlag("log.level", pf.Lookup("log-level"))
	mustBindPFlag("log.style", pf.Lookup("log-style"))
	mustBindPFlag("annotators", pf.Lookup("annotators"))
	mustBindPFlag("threads", pf.Lookup("threads"))
	mustBindPFlag("gazetteer_files", pf.Lookup("gazetteer-files"))
	mustBindPFlag("json_props", pf.Lookup("json-props"))
	mustBindPFlag("remote.host", pf.Lookup("host"))
	mustBindPFlag("remote.port", pf.Lookup("port"))
	mustBindPFlag("remote.api_key", pf.Lookup("api-key"))
	mustBindPFlag("remote.api_secret", pf.Lookup("api-secret"))
	mustBindPFlag("remote.path", pf.Lookup("remote-path"))
	mustBindPFlag("remote.timeout", pf.Lookup("remote-timeout"))
	mustBindPFlag("entity_cache_ttl", pf.Lookup("entity-cache-ttl"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("corenlp")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.corenlp")
		}
	}

	viper.SetEnvPrefix("CORENLP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func newLogger() *zap.Logger {
	return logging.NewLogger(&logging.Config{
		Level: logging.Level(viper.GetString("log.level")),
		Style: logging.Style(viper.GetString("log.style")),
	})
}

// loadConfig builds the service configuration from flags, environment and
// the config file.
func loadConfig(logger *zap.Logger) corenlp.Config {
	return configFrom(viper.GetViper(), logger)
}

// configFrom reads the service configuration from v. The config file's
// properties map comes first, json_props overrides it, and the dedicated
// annotators, threads and gazetteer_files keys override both.
func configFrom(v *viper.Viper, logger *zap.Logger) corenlp.Config {
	props := make(map[string]string)
	for k, val := range v.GetStringMapString("properties") {
		props[k] = val
	}
	extra, err := corenlp.PropertiesFromJSON(v.GetString("json_props"))
	if err != nil {
		logger.Error("Failed to read json properties", zap.Error(err))
	}
	for k, val := range extra {
		props[k] = val
	}
	if s := v.GetString("annotators"); s != "" {
		props[corenlp.PropAnnotators] = s
	}
	if s := v.GetString("threads"); s != "" {
		props[corenlp.PropThreads] = s
	}
	if s := v.GetString("gazetteer_files"); s != "" {
		props[corenlp.PropGazetteerFiles] = s
	}

	return corenlp.Config{
		Properties: props,
		Remote: corenlp.RemoteConfig{
			Host:      v.GetString("remote.host"),
			Port:      v.GetString("remote.port"),
			APIKey:    v.GetString("remote.api_key"),
			APISecret: v.GetString("remote.api_secret"),
			Path:      v.GetString("remote.path"),
			Timeout:   v.GetDuration("remote.timeout"),
		},
		EntityCacheTTL: v.GetDuration("entity_cache_ttl"),
		APIURL:         v.GetString("api_url"),
	}
}
