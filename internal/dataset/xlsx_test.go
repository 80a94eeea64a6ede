package dataset

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// writeXLSXFixture builds a two-sheet workbook: "Ignore" (sheetId 1) and
// "Data" (sheetId 2). Relationship targets use a leading slash on purpose.
func writeXLSXFixture(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets>
    <sheet name="Ignore" sheetId="1" r:id="rId1"/>
    <sheet name="Data" sheetId="2" r:id="rId2"/>
  </sheets>
</workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Target="/xl/worksheets/sheet1.xml"/>
  <Relationship Id="rId2" Target="worksheets/sheet2.xml"/>
</Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <si><t>Group</t></si><si><t>Score</t></si><si><t>alpha</t></si><si><r><t>be</t></r><r><t>ta</t></r></si>
</sst>`,
		"xl/worksheets/sheet1.xml": sheetXML(`<row r="1"><c r="A1" t="inlineStr"><is><t>placeholder</t></is></c></row>`),
		"xl/worksheets/sheet2.xml": sheetXML(
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c><c r="C1" t="inlineStr"><is><t>Flag</t></is></c><c r="D1" t="inlineStr"><is><t>Ratio</t></is></c></row>` +
				`<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>10.5</v></c><c r="C2" t="b"><v>1</v></c><c r="D2" t="e"><v>#DIV/0!</v></c></row>` +
				`<row r="3"><c r="A3" t="s"><v>3</v></c><c r="B3"><v>11</v></c><c r="C3" t="b"><v>0</v></c><c r="D3"><v>0.25</v></c></row>` +
				`<row r="4"></row>` +
				`<row r="5"><c r="A5" t="s"><v>2</v></c><c r="C5" t="b"><v>1</v></c><c r="D5"><v>0.5</v></c></row>`),
	}
	return zipXLSX(t, files)
}

func zipXLSX(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func sheetXML(rows string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>%s</sheetData></worksheet>`, rows)
}

func TestLoadXLSXSheetSelection(t *testing.T) {
	data := writeXLSXFixture(t)

	byName := DefaultLoadOptions()
	byName.SheetName = "data"
	tblByName, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), byName)
	if err != nil {
		t.Fatalf("LoadXLSX by name: %v", err)
	}
	assertDataSheet(t, tblByName)

	byIndex := DefaultLoadOptions()
	byIndex.SheetIndex = 2
	tblByIndex, err := Load("book.xlsx", bytes.NewReader(data), byIndex)
	if err != nil {
		t.Fatalf("Load by index: %v", err)
	}
	assertDataSheet(t, tblByIndex)

	first, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), DefaultLoadOptions())
	if err != nil {
		t.Fatalf("LoadXLSX default sheet: %v", err)
	}
	if first.Rows() != 0 || first.NumColumns() != 1 {
		t.Fatalf("default sheet shape = %dx%d, want 0x1", first.Rows(), first.NumColumns())
	}
}

func assertDataSheet(t *testing.T, tbl *Table) {
	t.Helper()
	if tbl.Rows() != 3 {
		t.Fatalf("rows = %d, want 3 (blank row skipped)", tbl.Rows())
	}
	group, _ := tbl.Column("Group")
	if group.Kind() != KindText || group.Value(1) != "beta" {
		t.Fatalf("Group kind=%s v1=%v", group.Kind(), group.Value(1))
	}
	score, _ := tbl.Column("Score")
	if score.Kind() != KindNumeric || score.MissingCount() != 1 {
		t.Fatalf("Score kind=%s missing=%d", score.Kind(), score.MissingCount())
	}
	flag, _ := tbl.Column("Flag")
	if flag.Kind() != KindBoolean || flag.Value(0) != true {
		t.Fatalf("Flag kind=%s v0=%v", flag.Kind(), flag.Value(0))
	}
	ratio, _ := tbl.Column("Ratio")
	if ratio.Kind() != KindNumeric || !ratio.IsMissing(0) {
		t.Fatalf("error cells should load as missing numeric: kind=%s", ratio.Kind())
	}
}

func TestLoadXLSXErrors(t *testing.T) {
	data := writeXLSXFixture(t)
	opt := DefaultLoadOptions()
	opt.SheetName = "Nope"
	_, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), opt)
	if err == nil || !strings.Contains(err.Error(), "Available sheets: Ignore, Data") {
		t.Fatalf("err = %v, want available sheet list", err)
	}

	limited := DefaultLoadOptions()
	limited.SheetName = "Data"
	limited.MaxRows = 2
	if _, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), limited); !errors.Is(err, ErrTooManyRows) {
		t.Fatalf("err = %v, want ErrTooManyRows", err)
	}

	if _, err := LoadXLSX(strings.NewReader("not a zip"), 9, DefaultLoadOptions()); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse for non-zip input", err)
	}
}

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"styles.xml", "xl/styles.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.input); got != tt.expected {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// singleSheetXLSX builds a one-sheet workbook. styles may be empty.
func singleSheetXLSX(t *testing.T, workbookPr, styles, rows string) []byte {
	t.Helper()
	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
			workbookPr + `<sheets><sheet name="Sheet1" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Target="worksheets/sheet1.xml"/>
</Relationships>`,
		"xl/worksheets/sheet1.xml": sheetXML(rows),
	}
	if styles != "" {
		files["xl/styles.xml"] = styles
	}
	return zipXLSX(t, files)
}

const dateStylesXML = `<?xml version="1.0" encoding="UTF-8"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <numFmts count="2">
    <numFmt numFmtId="164" formatCode="yyyy\-mm\-dd;@"/>
    <numFmt numFmtId="165" formatCode="&quot;Qty &quot;0"/>
  </numFmts>
  <cellStyleXfs count="1"><xf numFmtId="14"/></cellStyleXfs>
  <cellXfs count="5">
    <xf numFmtId="0" xfId="0"/>
    <xf numFmtId="14" xfId="0" applyNumberFormat="1"/>
    <xf numFmtId="164" xfId="0" applyNumberFormat="1"/>
    <xf numFmtId="165" xfId="0" applyNumberFormat="1"/>
    <xf numFmtId="22" xfId="0" applyNumberFormat="1"/>
  </cellXfs>
</styleSheet>`

func inlineHeader(names ...string) string {
	var b strings.Builder
	b.WriteString(`<row r="1">`)
	for _, n := range names {
		fmt.Fprintf(&b, `<c t="inlineStr"><is><t>%s</t></is></c>`, n)
	}
	b.WriteString(`</row>`)
	return b.String()
}

func TestLoadXLSXDateFormattedCells(t *testing.T) {
	rows := inlineHeader("Day", "Stamp", "Custom", "Qty", "Mixed") +
		`<row r="2"><c r="A2" s="1"><v>45292</v></c><c r="B2" s="4"><v>45292.5</v></c><c r="C2" s="2"><v>45293</v></c><c r="D2" s="3"><v>7</v></c><c r="E2" s="1"><v>45292</v></c></row>` +
		`<row r="3"><c r="A3" s="1"><v>45293</v></c><c r="B3" s="4"><v>45293.25</v></c><c r="C3" s="2"><v>45294</v></c><c r="D3" s="0"><v>8</v></c><c r="E3" t="inlineStr"><is><t>later</t></is></c></row>`
	data := singleSheetXLSX(t, "", dateStylesXML, rows)
	tbl, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), DefaultLoadOptions())
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}

	checks := []struct {
		col  string
		want time.Time
	}{
		{"Day", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"Stamp", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Custom", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range checks {
		col, _ := tbl.Column(c.col)
		if col.Kind() != KindDatetime {
			t.Fatalf("%s kind = %s, want datetime", c.col, col.Kind())
		}
		got, ok := col.Value(0).(time.Time)
		if !ok || !got.Equal(c.want) {
			t.Fatalf("%s[0] = %v, want %v", c.col, col.Value(0), c.want)
		}
		if col.MissingCount() != 0 {
			t.Fatalf("%s missing = %d, want 0", c.col, col.MissingCount())
		}
	}
	qty, _ := tbl.Column("Qty")
	if qty.Kind() != KindNumeric || qty.Value(1).(float64) != 8 {
		t.Fatalf("quoted text in a number format must not make a date: kind=%s", qty.Kind())
	}
	mixed, _ := tbl.Column("Mixed")
	if mixed.Kind() != KindText {
		t.Fatalf("Mixed kind = %s, want text", mixed.Kind())
	}
}

func TestLoadXLSXDate1904(t *testing.T) {
	rows := inlineHeader("Day") + `<row r="2"><c r="A2" s="1"><v>0</v></c></row>`
	data := singleSheetXLSX(t, `<workbookPr date1904="1"/>`, dateStylesXML, rows)
	tbl, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), DefaultLoadOptions())
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	day, _ := tbl.Column("Day")
	if got, _ := day.Value(0).(time.Time); !got.Equal(time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Day[0] = %v, want 1904-01-01", day.Value(0))
	}
}

func TestIsDateFormat(t *testing.T) {
	tests := []struct {
		id   int
		code string
		want bool
	}{
		{0, "", false},
		{2, "", false},
		{14, "", true},
		{22, "", true},
		{46, "", true},
		{164, "dd/mm/yyyy", true},
		{164, "[$-409]h:mm AM/PM", true},
		{164, "[Red]0.00", false},
		{164, `"days "0`, false},
		{164, `0\d`, false},
		{164, "General", false},
	}
	for _, tt := range tests {
		if got := isDateFormat(tt.id, tt.code); got != tt.want {
			t.Errorf("isDateFormat(%d, %q) = %v, want %v", tt.id, tt.code, got, tt.want)
		}
	}
}

func TestSerialToISO(t *testing.T) {
	tests := []struct {
		val      string
		date1904 bool
		want     string
		ok       bool
	}{
		{"45292", false, "2024-01-01", true},
		{"45292.75", false, "2024-01-01T18:00:00", true},
		{"0", true, "1904-01-01", true},
		{"2958465", false, "9999-12-31", true},
		{"-1", false, "", false},
		{"abc", false, "", false},
	}
	for _, tt := range tests {
		got, ok := serialToISO(tt.val, tt.date1904)
		if got != tt.want || ok != tt.ok {
			t.Errorf("serialToISO(%q, %v) = %q, %v; want %q, %v", tt.val, tt.date1904, got, ok, tt.want, tt.ok)
		}
	}
}

func TestColIndexFromRef(t *testing.T) {
	tests := map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA10": 26, "ab2": 27, "XFD1": 16383, "": -1, "17": -1}
	for ref, want := range tests {
		got, err := colIndexFromRef(ref)
		if err != nil || got != want {
			t.Errorf("colIndexFromRef(%q) = %d, %v; want %d", ref, got, err, want)
		}
	}
	for _, ref := range []string{"XFE1", "ZZZ1", "ZZZZ1", "ZZZZZZZZZZZZZZZZ1"} {
		if _, err := colIndexFromRef(ref); err == nil {
			t.Errorf("colIndexFromRef(%q) should fail past column XFD", ref)
		}
	}
}

func TestLoadXLSXRejectsColumnsPastXFD(t *testing.T) {
	cases := map[string]string{
		"header": `<row r="1"><c r="ZZZZ1" t="inlineStr"><is><t>x</t></is></c></row>`,
		"data":   inlineHeader("a") + `<row r="2"><c r="XFE2"><v>1</v></c></row>`,
	}
	for name, rows := range cases {
		data := singleSheetXLSX(t, "", "", rows)
		_, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), DefaultLoadOptions())
		if !errors.Is(err, ErrParse) {
			t.Errorf("%s: err = %v, want ErrParse", name, err)
		}
	}
}

func TestLoadXLSXWideCellKeepsHeaderWidth(t *testing.T) {
	rows := inlineHeader("a") + `<row r="2"><c r="A2"><v>1</v></c><c r="XFD2"><v>2</v></c></row>`
	data := singleSheetXLSX(t, "", "", rows)
	tbl, err := LoadXLSX(bytes.NewReader(data), int64(len(data)), DefaultLoadOptions())
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	if tbl.NumColumns() != 1 || tbl.Rows() != 1 {
		t.Fatalf("shape = %dx%d, want 1x1", tbl.Rows(), tbl.NumColumns())
	}
}
