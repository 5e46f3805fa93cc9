package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent activity",
	RunE:  runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/events")
	if err != nil {
		return err
	}

	var entries []struct {
		Time  time.Time `json:"time"`
		Event string    `json:"event"`
		Name  string    `json:"name"`
	}
	if err := json.Unmarshal(resp, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No activity yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tTASK")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Time.Local().Format("2006-01-02 15:04"), e.Event, e.Name)
	}
	w.Flush()
	return nil
}
