// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Command uaserver runs the OPC UA server described by a JSON5
// configuration file (spec.md §6), grounded on the teacher pack's
// cobra-based CLI entrypoints (e.g. marmos91-dittofs's cmd/dfs).
package main

import (
	"fmt"
	"os"

	"github.com/open62541/open62541-sub001/cmd/uaserver/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
