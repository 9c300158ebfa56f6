package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/pulse/internal/db"
	"github.com/opencode-ai/pulse/internal/models"
	"github.com/spf13/cobra"
)

var (
	eventsAction string
	eventsType   string
	eventsSince  string
	eventsLimit  int
	followMode   bool
)

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVarP(&eventsAction, "action", "a", "", "only events for this action")
	eventsCmd.Flags().StringVarP(&eventsType, "type", "t", "", "only events of this type (e.g. action.started)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only events since a duration (1h, 7d) or timestamp")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "maximum number of events to list")
	eventsCmd.Flags().BoolVarP(&followMode, "follow", "f", false, "stream new events as JSON lines")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List or follow journaled scheduler events",
	Example: `  pulse events
  pulse events --action heartbeat --limit 20
  pulse events --since 1h --type action.stopped
  pulse events --follow --jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := MustBeJSONLForFollow(); err != nil {
			return err
		}
		since, err := ParseSince(eventsSince)
		if err != nil {
			return err
		}

		if !journalExists() {
			return &PreflightError{
				Message:  "no event journal found",
				Hint:     "the journal is written by pulse run when journal.enabled is true",
				NextStep: "pulse run",
			}
		}

		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()
		repo := db.NewEventRepository(database)

		if followMode {
			config := DefaultStreamConfig()
			config.Since = since
			config.IncludeExisting = since != nil
			config.EntityID = eventsAction
			config.EventType = models.EventType(eventsType)
			if eventsAction != "" {
				config.EntityTypes = []models.EntityType{models.EntityTypeAction}
			}
			return NewEventStreamer(repo, os.Stdout, config).Stream(cmd.Context())
		}

		query := db.EventQuery{Since: since, Limit: eventsLimit}
		if eventsAction != "" {
			entityType := models.EntityTypeAction
			query.EntityType = &entityType
			query.EntityID = &eventsAction
		}
		if eventsType != "" {
			eventType := models.EventType(eventsType)
			query.Type = &eventType
		}

		var list []*models.Event
		if eventsAction != "" && since == nil && eventsType == "" {
			list, err = repo.ListByEntity(cmd.Context(), models.EntityTypeAction, eventsAction, eventsLimit)
		} else {
			var page *db.EventPage
			page, err = repo.Query(cmd.Context(), query)
			if page != nil {
				list = page.Events
			}
		}
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, list)
		}
		if len(list) == 0 {
			fmt.Println("No events found.")
			return nil
		}
		return writeTable(os.Stdout, []string{"TIME", "TYPE", "ENTITY", "DETAIL"}, eventRows(list))
	},
}

func eventRows(list []*models.Event) [][]string {
	rows := make([][]string, 0, len(list))
	for _, event := range list {
		rows = append(rows, []string{
			event.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(event.Type),
			fmt.Sprintf("%s/%s", event.EntityType, event.EntityID),
			truncate(strings.TrimSpace(string(event.Payload)), 60),
		})
	}
	return rows
}
