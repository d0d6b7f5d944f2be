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

package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/iss-lab/nifi-stanfordcorenlp-processor/pkg/corenlp/lib/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Check whether an annotation server is alive",
	Long: `Send a GET request to the server and report it alive when it answers with a
2xx or 3xx status. The configured api key and secret are sent as basic auth.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	host, port, err := statusTarget(args[0])
	if err != nil {
		return err
	}

	c, err := client.New(client.Config{
		Host:      host,
		Port:      port,
		APIKey:    viper.GetString("remote.api_key"),
		APISecret: viper.GetString("remote.api_secret"),
		Timeout:   viper.GetDuration("remote.timeout"),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	alive, err := c.CheckStatus(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !alive {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is not alive\n", args[0])
		return fmt.Errorf("server %s is not alive", args[0])
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is alive\n", args[0])
	return err
}

// statusTarget splits an http or https server url into the client host and
// port, defaulting the port from the scheme.
func statusTarget(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, fmt.Errorf("invalid server url %q", raw)
	}
	var port int
	switch u.Scheme {
	case "http":
		port = 80
	case "https":
		port = 443
	default:
		return "", 0, fmt.Errorf("unsupported scheme %q in %q: use http or https", u.Scheme, raw)
	}
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, fmt.Errorf("invalid port in %q: %w", raw, err)
		}
	}
	return u.Scheme + "://" + u.Hostname(), port, nil
}
