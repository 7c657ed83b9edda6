// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open62541/open62541-sub001/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective server configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse and validate the configuration file without starting the server",
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, newViper(cmd))
	if err != nil {
		return err
	}
	fmt.Printf("applicationUri: %s\n", cfg.ApplicationDescription.ApplicationURI)
	fmt.Printf("applicationType: %s\n", cfg.ApplicationDescription.ApplicationType)
	fmt.Printf("serverUrls: %v\n", cfg.ServerURLs)
	fmt.Printf("maxSessions: %d\n", cfg.MaxSessions)
	fmt.Printf("maxSubscriptions: %d\n", cfg.MaxSubscriptions)
	fmt.Printf("securityPolicies: %d configured\n", len(cfg.SecurityPolicies))
	if cfg.PubSub.Enabled {
		fmt.Printf("pubsub: enabled, broker=%s topic=%s\n", cfg.PubSub.BrokerURL, cfg.PubSub.Topic)
	}
	fmt.Println("configuration OK")
	return nil
}
