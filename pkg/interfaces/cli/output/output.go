package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	// Name is the base file name used when writing into OutputDir
	Name    string
	Verbose bool
}

// Table is one titled grid of report cells
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Generate renders tables in the configured format. Text, JSON and CSV go to w
// unless an output directory is set; xlsx always goes to a file.
func Generate(w io.Writer, tables []Table, config Config) error {
	switch config.Format {
	case "", "text":
		return writeTo(w, config, "txt", func(out io.Writer) error { return writeText(out, tables) })
	case "json":
		return writeTo(w, config, "json", func(out io.Writer) error { return writeJSON(out, tables) })
	case "csv":
		return writeTo(w, config, "csv", func(out io.Writer) error { return writeCSV(out, tables) })
	case "xlsx":
		return writeExcel(w, tables, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

func writeTo(w io.Writer, config Config, ext string, render func(io.Writer) error) error {
	if config.OutputDir == "" {
		return render(w)
	}

	filename, err := outputPath(config, ext)
	if err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	if err := render(f); err != nil {
		return err
	}
	if config.Verbose {
		fmt.Fprintf(w, "Results saved to: %s\n", filename)
	}
	return nil
}

func outputPath(config Config, ext string) (string, error) {
	dir := config.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := config.Name
	if name == "" {
		name = "report"
	}
	return filepath.Join(dir, name+"."+ext), nil
}

func writeText(w io.Writer, tables []Table) error {
	for i, table := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if table.Title != "" {
			fmt.Fprintf(w, "%s\n%s\n", table.Title, strings.Repeat("=", len(table.Title)))
		}
		if len(table.Rows) == 0 {
			fmt.Fprintln(w, "(none)")
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(table.Headers, "\t"))
		dashes := make([]string, len(table.Headers))
		for j, h := range table.Headers {
			dashes[j] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(tw, strings.Join(dashes, "\t"))
		for _, row := range table.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("failed to write table %q: %w", table.Title, err)
		}
	}
	return nil
}

type jsonTable struct {
	Title string              `json:"title"`
	Rows  []map[string]string `json:"rows"`
}

func writeJSON(w io.Writer, tables []Table) error {
	out := make([]jsonTable, 0, len(tables))
	for _, table := range tables {
		jt := jsonTable{Title: table.Title, Rows: make([]map[string]string, 0, len(table.Rows))}
		for _, row := range table.Rows {
			record := make(map[string]string, len(table.Headers))
			for i, h := range table.Headers {
				if i < len(row) {
					record[h] = row[i]
				}
			}
			jt.Rows = append(jt.Rows, record)
		}
		out = append(out, jt)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

// writeCSV writes each table as a header row followed by its rows, with a
// blank record between tables
func writeCSV(w io.Writer, tables []Table) error {
	cw := csv.NewWriter(w)
	for i, table := range tables {
		if i > 0 {
			if err := cw.Write([]string{}); err != nil {
				return err
			}
		}
		if err := cw.Write(table.Headers); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		if err := cw.WriteAll(table.Rows); err != nil {
			return fmt.Errorf("failed to write CSV rows: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeExcel(w io.Writer, tables []Table, config Config) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, table := range tables {
		sheet := sheetName(table.Title, i)
		index, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}

		for col, header := range table.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, header)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
		for rowIdx, row := range table.Rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				f.SetCellValue(sheet, cell, value)
			}
		}
		if len(table.Headers) > 0 {
			last, _ := excelize.ColumnNumberToName(len(table.Headers))
			f.SetColWidth(sheet, "A", last, 15)
		}
	}

	if len(tables) > 0 {
		f.DeleteSheet("Sheet1")
	}

	filename, err := outputPath(config, "xlsx")
	if err != nil {
		return err
	}
	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	fmt.Fprintf(w, "Workbook saved to: %s\n", filename)
	return nil
}

// sheetName fits a table title into Excel's 31 character sheet name limit
func sheetName(title string, index int) string {
	name := strings.NewReplacer(":", " ", "/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")").Replace(title)
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "Sheet1") {
		name = fmt.Sprintf("Table %d", index+1)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
