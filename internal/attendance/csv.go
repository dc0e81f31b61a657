package attendance

import (
	"encoding/csv"
	"io"
)

// WriteCSV renders session attendance as Name,Username,Group,Scanned At.
// encoding/csv quotes fields containing delimiters, so free-text names and
// group labels cannot corrupt the output.
func WriteCSV(w io.Writer, entries []SessionEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Username", "Group", "Scanned At"}); err != nil {
		return err
	}
	for _, e := range entries {
		group := ""
		if e.GroupName != nil {
			group = *e.GroupName
		}
		if err := cw.Write([]string{e.Name, e.Username, group, e.ScannedAt.Format("2006-01-02 15:04:05")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
