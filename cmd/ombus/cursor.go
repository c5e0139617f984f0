// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"code.hybscloud.com/ombus/shmring"
	"github.com/spf13/cobra"
)

var cursorPath string

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "inspect or rewrite a cursor file",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the last_wal_seq recorded in a cursor file",
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := shmring.LoadCursor(cursorPath)
		if err != nil {
			return fmt.Errorf("cursor show: %w", err)
		}
		fmt.Println(seq)
		return nil
	},
}

var cursorResetSeq uint64

var cursorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "rewrite a cursor file's last_wal_seq (default 0)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := shmring.SaveCursor(cursorPath, cursorResetSeq); err != nil {
			return fmt.Errorf("cursor reset: %w", err)
		}
		fmt.Printf("cursor %s reset to %d\n", cursorPath, cursorResetSeq)
		return nil
	},
}

func init() {
	cursorCmd.PersistentFlags().StringVar(&cursorPath, "path", "", "cursor file path")
	_ = cursorCmd.MarkPersistentFlagRequired("path")
	cursorResetCmd.Flags().Uint64Var(&cursorResetSeq, "seq", 0, "last_wal_seq to write")
	cursorCmd.AddCommand(cursorShowCmd, cursorResetCmd)
}
