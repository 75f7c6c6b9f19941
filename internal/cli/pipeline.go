package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для просмотра pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineDroppedCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STAGES", "ACTIVE_RUN", "STATE"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				names := make([]string, len(p.Stages))
				for j, s := range p.Stages {
					names[j] = s.Name
				}
				rows[i] = []string{p.Name, strings.Join(names, " → "), orDash(p.ActiveRunID), orDash(p.ActiveState)}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show pipeline stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			if p.ActiveRunID != "" {
				out.Success(fmt.Sprintf("Active run: %s (%s)", p.ActiveRunID, p.ActiveState))
			}

			headers := []string{"#", "KIND", "NAME", "POLL", "MAX_WAIT", "ATTEMPTS"}
			rows := make([][]string, len(p.Stages))
			for i, s := range p.Stages {
				rows[i] = []string{strconv.Itoa(i + 1), s.Kind, s.Name, s.PollInterval, s.MaxWait, strconv.Itoa(s.MaxAttempts)}
			}

			out.Print(headers, rows, p)
			return nil
		},
	}
}

func newPipelineDroppedCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dropped NAME",
		Short: "List triggers dropped while a run was active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			dropped, err := client.ListDropped(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"SOURCE", "EVENT", "ACTIVE_RUN", "DROPPED"}
			rows := make([][]string, len(dropped))
			for i, d := range dropped {
				rows[i] = []string{d.SourceLocation, d.EventType, d.ActiveRunID, d.DroppedAt}
			}

			out.Print(headers, rows, dropped)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}
