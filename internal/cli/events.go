package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bunko/bunko/pkg/events"
	"github.com/bunko/bunko/pkg/kafka"
	"github.com/bunko/bunko/pkg/setup"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published session events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print session events from Kafka as they arrive",
	Long: `Follow the session event topic and print one event per line.

Requires events.kafka.brokers (or BUNKO_KAFKA_BROKERS).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := setup.NewLogger(bunkoConfig.Logging)
		if err != nil {
			return err
		}
		defer closeLog()

		consumer, err := kafka.NewConsumer(bunkoConfig.Events.Kafka, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()

		out := cmd.OutOrStdout()
		return consumer.Run(cmdContext(cmd), func(ev events.Event) {
			if jsonOutput {
				data, err := json.Marshal(ev)
				if err == nil {
					fmt.Fprintln(out, string(data))
				}
				return
			}
			fmt.Fprintf(out, "%s  %-16s  %s  %v\n",
				ev.Time.Format("15:04:05.000"), ev.Type, shortID(ev.SessionID), ev.Payload)
		})
	},
}

func init() {
	eventsCmd.AddCommand(eventsTailCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
