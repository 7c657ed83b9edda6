// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "uaserver",
	Short: "An OPC UA binary-protocol server",
	Long: `uaserver runs an OPC UA server over the binary TCP protocol
(opc.tcp://), configured by a JSON5 document (spec.md §6). Individual
keys can be overridden with OPCUA_* environment variables.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a JSON5 configuration file")
}

// Execute runs the root command, dispatching to whichever subcommand the
// operator invoked.
func Execute() error {
	return rootCmd.Execute()
}

// newViper returns a fresh viper instance bound to --config and any
// already-bound flags of cmd, for commands that need per-invocation flag
// overrides layered on top of config.Load's own env handling.
func newViper(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err) // only fails on a programmer error (duplicate flag names)
	}
	return v
}
