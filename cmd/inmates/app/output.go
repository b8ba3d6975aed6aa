package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"inmates/internal/inmates/models"
)

const dateLayout = "2006-01-02"

func writeJSON(w io.Writer, result models.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeTable(w io.Writer, result models.Result) error {
	if len(result.Inmates) == 0 {
		fmt.Fprintln(w, "No matching inmates found.")
	} else {
		table := tablewriter.NewTable(w)
		table.Header("Jurisdiction", "ID", "Name", "Unit", "Release", "Race", "Sex")
		for _, in := range result.Inmates {
			if err := table.Append(
				in.Jurisdiction.String(),
				in.ID,
				in.LastName+", "+in.FirstName,
				deref(in.Unit),
				releaseText(in),
				deref(in.Race),
				deref(in.Sex),
			); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	for _, e := range result.Errors {
		fmt.Fprintf(w, "warning: %s\n", e.Message)
	}
	return nil
}

func releaseText(in models.Inmate) string {
	if in.Release == nil {
		return "-"
	}
	return in.Release.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
