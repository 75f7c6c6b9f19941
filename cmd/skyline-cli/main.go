// Skyline CLI — инструмент командной строки для просмотра pipelines,
// runs и отправки событий через HTTP API.
//
// Использование:
//
//	skyline [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	pipeline  Просмотр pipelines и отброшенных triggers
//	run       Просмотр и ручной запуск runs
//	event     Отправка событий хранилища
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Skyline/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("SKYLINE_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd := &cobra.Command{
		Use:           "skyline",
		Short:         "Skyline CLI — airline pipeline orchestration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env SKYLINE_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPipelineCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewEventCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
