package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hazyhaar/obras/record"
)

// ExportColumns is the header of the completed-works CSV export.
var ExportColumns = []string{
	"base", "obra", "status", "qtd_prog", "inic", "conc",
	"inic_sem", "conc_sem", "prog", "andamento", "valor", "vizita",
}

// WriteCompletedCSV writes recs as comma-separated rows under ExportColumns.
func WriteCompletedCSV(w io.Writer, recs []record.Completed) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, c := range recs {
		row := []string{
			c.Base, c.Work, c.Status, number(c.Quantity), c.Start.String(), c.End.String(),
			c.StartWeek, c.EndWeek, c.Progress, number(c.RunningTotal), number(c.Amount), c.Visit,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func number(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
