package cli

import (
	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для отправки событий хранилища.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Send storage events",
	}

	cmd.AddCommand(newEventSendCmd(clientFn, outputFn))

	return cmd
}

func newEventSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var eventType string
	var bucket string

	cmd := &cobra.Command{
		Use:   "send KEY",
		Short: "Send an object-created event for KEY to every pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.SendEvent(EventRequest{
				Bucket:         bucket,
				SourceLocation: args[0],
				EventType:      eventType,
			})
			if err != nil {
				return err
			}

			if len(events) == 0 {
				out.Success("Event ignored: not a storage object notification")
			}

			headers := []string{"SOURCE", "PIPELINE", "DECISION", "REASON", "RUN_ID"}
			var rows [][]string
			for _, ev := range events {
				for _, d := range ev.Decisions {
					rows = append(rows, []string{ev.SourceLocation, d.Pipeline, d.Decision, orDash(d.Reason), orDash(d.RunID)})
				}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "put", "Event type")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket name")

	return cmd
}
