package cmd

import (
	"freshsync/cmd/freshsync/cmd/export"
	"freshsync/cmd/freshsync/cmd/repair"
	"freshsync/cmd/freshsync/cmd/sync"
	"freshsync/cmd/freshsync/cmd/verify"
)

func init() {
	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(export.ExportCmd)
	rootCmd.AddCommand(verify.VerifyCmd)
	rootCmd.AddCommand(repair.RepairCmd)
}
