package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "aelpher",
		Short: "Aelpher Control - Dual-theater productivity dashboard",
		Long: `Aelpher Control tracks two parallel efforts (ibm, cs) as theaters of
operation. It logs activity, derives each theater's engagement status,
ranks action items by a staleness-and-gap score, and keeps a combined
overload risk metric up to date.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
