package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var outcome string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Pipeline: pipeline,
				Outcome:  outcome,
				Limit:    limit,
				Offset:   offset,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PIPELINE", "TRIGGER", "STATE", "OUTCOME", "FAILED_STAGE", "STARTED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.Pipeline, r.TriggerSource, r.State, r.Outcome, orDash(r.FailedStage), r.StartedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Filter by pipeline")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome (in_progress, succeeded, failed, aborted)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "start PIPELINE",
		Short: "Start a run manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			decision, err := client.StartRun(args[0], StartRunRequest{Source: source})
			if err != nil {
				return err
			}

			switch decision.Decision {
			case "accepted":
				out.Success(fmt.Sprintf("Run started: %s", decision.RunID))
			case "duplicate":
				out.Success(fmt.Sprintf("Trigger dropped: run %s is already active", decision.RunID))
			}

			out.Print(
				[]string{"PIPELINE", "DECISION", "RUN_ID"},
				[][]string{{decision.Pipeline, decision.Decision, orDash(decision.RunID)}},
				decision,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Trigger source recorded in the run (default: manual)")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details with stage results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			if !out.jsonMode {
				out.Table(
					[]string{"ID", "PIPELINE", "TRIGGER", "STATE", "OUTCOME", "ERROR"},
					[][]string{{run.ID, run.Pipeline, run.TriggerSource, run.State, run.Outcome, orDash(run.Error)}},
				)
				fmt.Fprintln(out.w)
			}

			headers := []string{"STAGE", "KIND", "OUTCOME", "STATUS", "ATTEMPTS", "POLLS", "DURATION"}
			rows := make([][]string, len(run.Stages))
			for i, s := range run.Stages {
				status := s.FinalStatus
				if s.NoOp {
					status = "no changes"
				}
				rows[i] = []string{
					s.StageName,
					s.Kind,
					s.Outcome,
					orDash(status),
					strconv.Itoa(s.Attempts),
					strconv.Itoa(s.Polls),
					(time.Duration(s.DurationMs) * time.Millisecond).String(),
				}
			}

			out.Print(headers, rows, run)
			return nil
		},
	}
}
