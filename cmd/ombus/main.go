// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ombus is the operator surface around the ombus library: drive a
// demo producer, poll a local endpoint, run a TCP broadcast server fed by
// the relay, and inspect cursor files (SPEC_FULL.md "Supplemented
// Features"). This is intentionally a thin wrapper: every subcommand just
// wires flags onto the shmring/tcpserver/relay packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfigFile string
	flagEnvFile    string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ombus",
	Short: "ombus is the operator CLI for the ombus event bus",
	Long:  "ombus drives producers, consumers, the TCP broadcast server, and relay from the command line.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a config file (yaml/toml/json); accepted but not read by any subcommand")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "path to a .env file; accepted but not read by any subcommand")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(produceCmd, consumeCmd, serveCmd, cursorCmd)
}

func newLogger() *zap.Logger {
	var log *zap.Logger
	var err error
	if flagVerbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		log = zap.NewNop()
	}
	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
