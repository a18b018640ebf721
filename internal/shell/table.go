package shell

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"departure-board/internal/departure"
)

const tableHeader = "| Departure  | Train Line | Train ID   | Destination          | Delay Time | Track |"

var tableSeparator = strings.Repeat("-", len(tableHeader))

func writeTable(w io.Writer, departures []departure.Departure) {
	fmt.Fprintln(w, tableSeparator)
	fmt.Fprintln(w, tableHeader)
	fmt.Fprintln(w, tableSeparator)
	for i := range departures {
		fmt.Fprintln(w, departures[i].Render())
	}
	fmt.Fprintln(w, tableSeparator)
}

func sortByDepartureTime(departures []departure.Departure) {
	slices.SortStableFunc(departures, func(a, b departure.Departure) int {
		return a.DepartureTime().Compare(b.DepartureTime())
	})
}
