package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"
)

// maxColumns is the widest sheet Excel can produce (column XFD).
const maxColumns = 16384

// LoadXLSX reads the selected sheet of an .xlsx workbook into a Table. The
// first non-empty row is the header. If SheetName is empty and SheetIndex <= 0,
// it defaults to the first sheet; SheetIndex is 1-based (Sheet1 == 1).
func LoadXLSX(r io.ReaderAt, size int64, opt LoadOptions) (*Table, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %w", ErrParse, err)
	}
	wbXML := readZipFile(zr, "xl/workbook.xml")
	sheets := parseWorkbook(wbXML)
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	target, err := resolveSheet(sheets, rels, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("%w: worksheet %s missing", ErrParse, target)
	}
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))
	styles := parseDateStyles(readZipFile(zr, "xl/styles.xml"))

	rr := newSheetRowReader(sheetXML, shared, styles, workbookDate1904(wbXML))
	var header []string
	for {
		row, ok := rr.Next()
		if !ok {
			if rr.err != nil {
				return nil, fmt.Errorf("%w: %w", ErrParse, rr.err)
			}
			return nil, ErrNoColumns
		}
		if !blankRow(row) {
			header = row
			break
		}
	}
	var rows [][]string
	dateCells := make([]int, len(header))
	otherCells := make([]int, len(header))
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if blankRow(row) {
			continue
		}
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, opt.MaxRows)
		}
		// Cells right of the header have no column; do not keep them alive.
		if len(row) > len(header) {
			row = append([]string(nil), row[:len(header)]...)
		}
		for j, v := range row {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if rr.isDate(j) {
				dateCells[j]++
			} else {
				otherCells[j]++
			}
		}
		rows = append(rows, row)
	}
	if rr.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, rr.err)
	}
	// Columns made only of date-formatted cells load as datetime.
	dateCols := map[int]bool{}
	for j := range header {
		if dateCells[j] > 0 && otherCells[j] == 0 {
			dateCols[j] = true
		}
	}
	return buildTableWithDates(header, rows, opt, dateCols)
}

// resolveSheet maps a sheet name or 1-based index to its ZIP entry path.
func resolveSheet(sheets []wbSheet, rels map[string]string, name string, index int) (string, error) {
	if name != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		available := make([]string, len(sheets))
		for i, s := range sheets {
			available[i] = s.Name
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook. Available sheets: %s", name, strings.Join(available, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range sheets {
		if s.SheetID == index {
			if rel, ok := rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	// Workbooks with renumbered sheetIds still list sheets in display order.
	if index <= len(sheets) {
		if rel, ok := rels[sheets[index-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// parseWorkbook extracts sheet entries with names and relationship ids.
func parseWorkbook(data []byte) []wbSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value // r: namespace
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships returns map[r:id]Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows out of a worksheet part.
type sheetRowReader struct {
	dec      *xml.Decoder
	shared   []string
	styles   []bool
	date1904 bool
	curRow   []string
	curDates []bool
	err      error
}

func newSheetRowReader(data []byte, shared []string, styles []bool, date1904 bool) *sheetRowReader {
	return &sheetRowReader{
		dec:      xml.NewDecoder(bytes.NewReader(data)),
		shared:   shared,
		styles:   styles,
		date1904: date1904,
	}
}

// isDate reports whether cell j of the last row came from a date-formatted
// number.
func (r *sheetRowReader) isDate(j int) bool {
	return j < len(r.curDates) && r.curDates[j]
}

// Next returns the following row. Cells without an r attribute are placed
// after the previous cell. A reference beyond column XFD stops the reader
// with r.err set.
func (r *sheetRowReader) Next() ([]string, bool) {
	if r.err != nil {
		return nil, false
	}
	inRow := false
	next := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				r.curRow = nil
				r.curDates = nil
				next = 0
			}
			if inRow && se.Name.Local == "c" {
				var rAttr, tAttr, sAttr string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						rAttr = a.Value
					case "t":
						tAttr = a.Value
					case "s":
						sAttr = a.Value
					}
				}
				colIdx, err := colIndexFromRef(rAttr)
				if err != nil {
					r.err = err
					return nil, false
				}
				if colIdx < 0 {
					colIdx = next
				}
				if colIdx >= maxColumns {
					r.err = fmt.Errorf("row has more than %d cells", maxColumns)
					return nil, false
				}
				next = colIdx + 1
				val, isDate := r.readCellValue(tAttr, sAttr)
				if len(r.curRow) <= colIdx {
					tmp := make([]string, colIdx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
					flags := make([]bool, colIdx+1)
					copy(flags, r.curDates)
					r.curDates = flags
				}
				r.curRow[colIdx] = val
				r.curDates[colIdx] = isDate
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return r.curRow, true
			}
		}
	}
}

// readCellValue consumes tokens up to </c>, capturing <v> or <is><t>. Numbers
// in a date or time style come back as ISO timestamps with isDate set.
func (r *sheetRowReader) readCellValue(tAttr, sAttr string) (val string, isDate bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val += sb.String()
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			switch tAttr {
			case "s":
				idx := atoiSafe(val)
				if idx >= 0 && idx < len(r.shared) {
					return r.shared[idx], false
				}
				return "", false
			case "b":
				if val == "1" {
					return "TRUE", false
				}
				return "FALSE", false
			case "e":
				// #DIV/0!, #N/A and friends load as missing.
				return "", false
			case "", "n":
				if r.dateStyle(sAttr) {
					if ts, ok := serialToISO(val, r.date1904); ok {
						return ts, true
					}
				}
			}
			return val, false
		}
	}
}

func (r *sheetRowReader) dateStyle(sAttr string) bool {
	if sAttr == "" {
		return false
	}
	idx, err := strconv.Atoi(sAttr)
	return err == nil && idx >= 0 && idx < len(r.styles) && r.styles[idx]
}

// serialToISO converts an Excel serial day number to an ISO 8601 timestamp.
// Whole days render as a date only.
func serialToISO(val string, date1904 bool) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	// 2958465 is 9999-12-31, the last day Excel can show.
	if err != nil || math.IsNaN(serial) || serial < 0 || serial > 2958466 {
		return "", false
	}
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if date1904 {
		base = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	days := math.Floor(serial)
	ms := math.Round((serial - days) * 86400 * 1000)
	t := base.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly), true
	}
	return t.Format("2006-01-02T15:04:05.999"), true
}

// parseDateStyles reports, per cellXfs index, whether the cell number format
// displays a date or time.
func parseDateStyles(data []byte) []bool {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	custom := map[int]string{}
	var fmtIDs []int
	inXfs := false
loop:
	for {
		tok, err := dec.Token()
		if err != nil {
			break loop
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "numFmt":
				var id int
				var code string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "numFmtId":
						id = atoiSafe(a.Value)
					case "formatCode":
						code = a.Value
					}
				}
				custom[id] = code
			case "cellXfs":
				inXfs = true
			case "xf":
				if !inXfs {
					continue
				}
				id := 0
				for _, a := range se.Attr {
					if a.Name.Local == "numFmtId" {
						id = atoiSafe(a.Value)
					}
				}
				fmtIDs = append(fmtIDs, id)
			}
		case xml.EndElement:
			if se.Name.Local == "cellXfs" {
				inXfs = false
			}
		}
	}
	out := make([]bool, len(fmtIDs))
	for i, id := range fmtIDs {
		out[i] = isDateFormat(id, custom[id])
	}
	return out
}

// isDateFormat recognises the built-in date/time formats and custom codes
// that use date or time tokens outside quoted text and [..] sections.
func isDateFormat(id int, code string) bool {
	if id >= 14 && id <= 22 || id >= 45 && id <= 47 {
		return true
	}
	if code == "" {
		return false
	}
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\', c == '_', c == '*':
			i++ // the next character is a literal or a padding width
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ymdhs")
}

// workbookDate1904 reports whether serial dates count from 1904-01-01.
func workbookDate1904(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "workbookPr" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "date1904" {
				return a.Value == "1" || strings.EqualFold(a.Value, "true")
			}
		}
		return false
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column index, or -1 when
// the ref has no column letters. Refs past column XFD are an error.
func colIndexFromRef(ref string) (int, error) {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	if i > 3 {
		return 0, fmt.Errorf("cell reference %q is beyond column XFD", ref)
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
	}
	if idx > maxColumns {
		return 0, fmt.Errorf("cell reference %q is beyond column XFD", ref)
	}
	return idx - 1, nil
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship Target paths to ZIP-compatible paths.
// Targets may carry a leading slash that ZIP entry names never have.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
