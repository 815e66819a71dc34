package workbook

import (
	"bytes"
	"context"

	"github.com/extrame/xls"
)

func readXLS(ctx context.Context, data []byte) ([]Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}

	var sheets []Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheet := Sheet{Name: ws.Name}
		for k := 0; k <= int(ws.MaxRow); k++ {
			row := ws.Row(k)
			if row == nil {
				sheet.Rows = append(sheet.Rows, nil)
				continue
			}
			last := row.LastCol()
			if last < 0 {
				last = 0
			}
			cells := make([]string, last)
			for j := row.FirstCol(); j < last; j++ {
				cells[j] = row.Col(j)
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}
