package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	doc "github.com/hazyhaar/docparse/docnorm"
)

var sheetPathRe = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)

// convertXLSX turns each worksheet into one tabular object. The first row
// of a sheet is treated as its header row. Sheets with no rows are skipped.
func (e *Engine) convertXLSX(data []byte) (*doc.Conversion, error) {
	r, err := openZip(data)
	if err != nil {
		return nil, err
	}

	shared, err := loadSharedStrings(r)
	if err != nil {
		return nil, err
	}

	type sheetFile struct {
		nr   int
		file *zip.File
	}
	var sheets []sheetFile
	for _, f := range r.File {
		m := sheetPathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		nr, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		sheets = append(sheets, sheetFile{nr: nr, file: f})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no worksheets found in archive")
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].nr < sheets[j].nr })

	var tables []doc.Tabular
	for idx, s := range sheets {
		table := &sheetTable{page: idx + 1}
		grid, err := extractSheetGrid(s.file, shared)
		if err != nil {
			table.err = fmt.Errorf("sheet %d: %w", s.nr, err)
			tables = append(tables, table)
			continue
		}
		if len(grid) == 0 {
			continue
		}
		table.headers = grid[0]
		table.rows = grid[1:]
		tables = append(tables, table)
	}

	return &doc.Conversion{
		PageCount: len(sheets),
		Tables:    tables,
		Version:   Version,
	}, nil
}

// sheetTable is one worksheet as a header/rows grid.
type sheetTable struct {
	headers []string
	rows    [][]string
	page    int
	err     error
}

func (t *sheetTable) Grid() ([]string, [][]string, error) {
	if t.err != nil {
		return nil, nil, t.err
	}
	return t.headers, t.rows, nil
}

func (t *sheetTable) Page() int { return t.page }

// xlsx XML shapes, namespace-agnostic by local name.

type xlsxSST struct {
	Items []xlsxSI `xml:"si"`
}

type xlsxSI struct {
	T    string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (si xlsxSI) text() string {
	s := si.T
	for _, r := range si.Runs {
		s += r.T
	}
	return s
}

type xlsxWorksheet struct {
	Rows []xlsxRow `xml:"sheetData>row"`
}

type xlsxRow struct {
	Cells []xlsxCell `xml:"c"`
}

type xlsxCell struct {
	Ref  string `xml:"r,attr"`
	Type string `xml:"t,attr"`
	V    string `xml:"v"`
	Is   struct {
		T string `xml:"t"`
	} `xml:"is"`
}

// loadSharedStrings reads xl/sharedStrings.xml; a workbook without one has
// no shared strings, which is fine.
func loadSharedStrings(r *zip.Reader) ([]string, error) {
	f, err := zipEntry(r, "xl/sharedStrings.xml")
	if err != nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open sharedStrings.xml: %w", err)
	}
	defer rc.Close()

	var sst xlsxSST
	if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
		return nil, fmt.Errorf("decode sharedStrings.xml: %w", err)
	}
	out := make([]string, len(sst.Items))
	for i, si := range sst.Items {
		out[i] = si.text()
	}
	return out, nil
}

// extractSheetGrid decodes one worksheet into rows of cell values, resolving
// shared and inline strings. Column positions come from the cell reference
// so sparse rows keep their alignment.
func extractSheetGrid(f *zip.File, shared []string) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var ws xlsxWorksheet
	if err := xml.NewDecoder(rc).Decode(&ws); err != nil {
		return nil, fmt.Errorf("decode worksheet: %w", err)
	}

	var grid [][]string
	for _, row := range ws.Rows {
		var values []string
		for _, cell := range row.Cells {
			col := colIndex(cell.Ref)
			if col < 0 {
				col = len(values)
			}
			for len(values) <= col {
				values = append(values, "")
			}
			values[col] = cellValue(cell, shared)
		}
		grid = append(grid, values)
	}

	// Pad short rows to the width of the widest row.
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range grid {
		for len(row) < width {
			row = append(row, "")
		}
		grid[i] = row
	}
	return grid, nil
}

// cellValue resolves the displayed value of a cell.
func cellValue(cell xlsxCell, shared []string) string {
	switch cell.Type {
	case "s":
		idx, err := strconv.Atoi(cell.V)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return cell.Is.T
	default:
		return cell.V
	}
}

// colIndex converts the letter part of a cell reference to a zero-based
// column index: "A1" → 0, "B7" → 1, "AA3" → 26. Returns -1 when the
// reference is absent.
func colIndex(ref string) int {
	col := 0
	seen := false
	for _, r := range ref {
		if r >= 'A' && r <= 'Z' {
			col = col*26 + int(r-'A') + 1
			seen = true
		} else if r >= 'a' && r <= 'z' {
			col = col*26 + int(r-'a') + 1
			seen = true
		} else {
			break
		}
	}
	if !seen {
		return -1
	}
	return col - 1
}
