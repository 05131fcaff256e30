package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/ferry"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ferry",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ferry version %s\n", ferry.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
