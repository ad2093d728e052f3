// ABOUTME: Printable equipment schedule workbook built with excelize.
// ABOUTME: One project sheet plus one sheet per equipment kind, rendered through each kind's columns.

package export

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/2389/sitewalk/internal/equipment"
	"github.com/2389/sitewalk/internal/store"
)

const (
	projectSheet = "Project"
	minColWidth  = 8.0
	maxColWidth  = 48.0
	// ContentType is the media type of Workbook output.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Workbook builds the schedule workbook of a project. The caller writes it
// out with WriteTo and closes it.
func Workbook(ctx context.Context, st *store.Store, reg *equipment.Registry, projectID int64) (*excelize.File, error) {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F3A5F"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", projectSheet); err != nil {
		f.Close()
		return nil, err
	}
	info := [][]string{
		{"Project", project.Name},
		{"Client", project.Client},
		{"Address", project.Address},
		{"Status", project.Status},
		{"Walk Date", project.WalkDate},
	}
	if err := writeRows(f, projectSheet, nil, info); err != nil {
		f.Close()
		return nil, err
	}
	f.SetCellStyle(projectSheet, "A1", fmt.Sprintf("A%d", len(info)), headerStyle)

	for _, kind := range reg.All() {
		sched, err := kind.Schedule(ctx, st, projectID)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s schedule: %w", kind.Slug, err)
		}
		if _, err := f.NewSheet(kind.Title); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeRows(f, kind.Title, sched.Headers, sched.Rows); err != nil {
			f.Close()
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(sched.Headers), 1)
		f.SetCellStyle(kind.Title, "A1", last, headerStyle)
	}

	f.SetActiveSheet(0)
	return f, nil
}

// writeRows writes an optional header row and the data rows, then sizes each
// column to its longest value.
func writeRows(f *excelize.File, sheet string, headers []string, rows [][]string) error {
	widths := map[int]int{}
	measure := func(line []string) {
		for i, v := range line {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}

	r := 1
	if headers != nil {
		if err := setRow(f, sheet, r, headers); err != nil {
			return err
		}
		measure(headers)
		r++
	}
	for _, line := range rows {
		if err := setRow(f, sheet, r, line); err != nil {
			return err
		}
		measure(line)
		r++
	}

	for i, n := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		w := float64(n) + 2
		w = max(minColWidth, min(w, maxColWidth))
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	line := make([]interface{}, len(values))
	for i, v := range values {
		line[i] = v
	}
	return f.SetSheetRow(sheet, cell, &line)
}
