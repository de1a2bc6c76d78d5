package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/fundrun/internal/events"
)

// runEvents lists the catalog events, optionally filtered by instrument.
// It reads the catalog directly rather than spinning up the full engine.
func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	catalog, err := events.Load(cfg.Paths.EventsFile)
	if err != nil {
		return fmt.Errorf("event catalog: %w", err)
	}

	coin, _ := cmd.Flags().GetString("coin")
	list := catalog.All()
	if coin != "" {
		list = catalog.ForInstrument(coin)
	}

	printEvents(list)
	return nil
}

// printEvents renders the catalog table.
func printEvents(list []events.Event) {
	if len(list) == 0 {
		fmt.Println("📅 No events in the catalog.")
		return
	}

	fmt.Printf("📅 %d event(s)\n\n", len(list))
	fmt.Printf("%-28s %-6s %-20s %-9s %s\n", "NAME", "COIN", "TIME", "IMPACT", "DESCRIPTION")
	for _, e := range list {
		fmt.Printf("%-28s %-6s %-20s %-9s %s\n",
			e.Name, e.Instrument, e.Time.UTC().Format("2006-01-02 15:04"), e.Impact, e.Description)
	}
}
