package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cmdgate",
	Short: "Command authorization gateway",
	Long: `cmdgate принимает запросы на запуск системных команд, сверяет их
с белым списком и либо исполняет сразу, либо отправляет оператору на апрув.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./config.yaml or ./configs/config.yaml)")
}
