package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"uptimedock/app/internal/models"
)

const pingSheet = "pings"

// maxXLSXRows caps the export; newer pings come first so the cap drops the oldest.
const maxXLSXRows = 100000

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(err)
	}
	return name
}

// WritePingsXLSX writes pings, in the given order, to a workbook with one sheet.
func WritePingsXLSX(w io.Writer, pings []models.Ping, createdAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", pingSheet); err != nil {
		return err
	}
	_ = f.SetDocProps(&excelize.DocProperties{
		Created:        createdAt.Format(time.RFC3339),
		Modified:       createdAt.Format(time.RFC3339),
		Creator:        "uptimedock",
		LastModifiedBy: "uptimedock",
	})

	for i, h := range []string{"time (UTC)", "name", "url", "status", "down"} {
		if err := f.SetCellStr(pingSheet, cell(i+1, 1), h); err != nil {
			return err
		}
	}

	datefmt := "yyyy-mm-dd hh:mm:ss"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &datefmt})
	if err != nil {
		return fmt.Errorf("date style: %w", err)
	}
	downStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "FF2D00", Bold: true},
	})
	if err != nil {
		return fmt.Errorf("down style: %w", err)
	}

	for i, p := range pings {
		if i >= maxXLSXRows {
			break
		}
		row := i + 2
		_ = f.SetCellValue(pingSheet, cell(1, row), p.TimeCheckedAt.UTC())
		_ = f.SetCellStyle(pingSheet, cell(1, row), cell(1, row), dateStyle)
		_ = f.SetCellStr(pingSheet, cell(2, row), p.Name)
		_ = f.SetCellStr(pingSheet, cell(3, row), p.URL)
		if p.StatusCode != nil {
			_ = f.SetCellValue(pingSheet, cell(4, row), *p.StatusCode)
		}
		_ = f.SetCellBool(pingSheet, cell(5, row), p.IsDown())
		if p.IsDown() {
			_ = f.SetCellStyle(pingSheet, cell(4, row), cell(5, row), downStyle)
		}
	}

	_ = f.SetColWidth(pingSheet, "A", "A", 20)
	_ = f.SetColWidth(pingSheet, "B", "B", 20)
	_ = f.SetColWidth(pingSheet, "C", "C", 40)

	return f.Write(w)
}
