package knowledge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/schema/soo/wml"
	"github.com/unidoc/unioffice/spreadsheet"
)

// skipUnlicensed 未配置unidoc授权时生成文档会失败
func skipUnlicensed(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "license") {
		t.Skipf("unidoc license not configured: %v", err)
	}
	require.NoError(t, err)
}

func TestMarkdownTable(t *testing.T) {
	got := MarkdownTable([][]string{
		{"Plan", "Price"},
		{"", ""},
		{"Basic", "100|200"},
		{"Pro"},
	})
	want := "| Plan | Price |\n| --- | --- |\n| Basic | 100\\|200 |\n| Pro |  |"
	assert.Equal(t, want, got)
	assert.Empty(t, MarkdownTable(nil))
}

func TestFileParserManager_Unsupported(t *testing.T) {
	m := NewFileParserManager()
	assert.True(t, m.Supports("report.DOCX"))
	assert.False(t, m.Supports("legacy.doc"))

	text, err := m.ParseFile(strings.NewReader("hello"), "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = m.ParseFile(strings.NewReader("x"), "movie.mp4")
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "text/html", DetectMimeType("page", "text/html; charset=utf-8"))
	assert.Equal(t, "application/pdf", DetectMimeType("a.pdf", ""))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", DetectMimeType("a.xlsx", "application/octet-stream"))
	assert.Equal(t, "text/markdown", DetectMimeType("a.md", ""))
}

func TestWordParser_HeadersBodyTablesFooters(t *testing.T) {
	doc := document.New()

	hdr := doc.AddHeader()
	hdr.AddParagraph().AddRun().AddText("โรงเรียนตัวอย่าง")
	doc.BodySection().SetHeader(hdr, wml.ST_HdrFtrDefault)

	doc.AddParagraph().AddRun().AddText("ระเบียบการสมัคร")
	doc.AddParagraph().AddRun().AddText("   ")

	tbl := doc.AddTable()
	for _, r := range [][]string{{"Plan", "Price"}, {"Basic", "100"}} {
		row := tbl.AddRow()
		for _, v := range r {
			row.AddCell().AddParagraph().AddRun().AddText(v)
		}
	}

	ftr := doc.AddFooter()
	ftr.AddParagraph().AddRun().AddText("โทร 02-000-0000")
	doc.BodySection().SetFooter(ftr, wml.ST_HdrFtrDefault)

	var buf bytes.Buffer
	skipUnlicensed(t, doc.Save(&buf))

	text, err := NewFileParserManager().ParseFile(bytes.NewReader(buf.Bytes()), "rules.docx")
	skipUnlicensed(t, err)

	assert.Contains(t, text, "| Plan | Price |\n| --- | --- |\n| Basic | 100 |")
	header := strings.Index(text, "โรงเรียนตัวอย่าง")
	body := strings.Index(text, "ระเบียบการสมัคร")
	footer := strings.Index(text, "โทร 02-000-0000")
	require.True(t, header >= 0 && body >= 0 && footer >= 0, text)
	assert.Less(t, header, body)
	assert.Less(t, body, footer)
	assert.NotContains(t, text, "\n\n\n")
}

func TestExcelParser_SheetsAsMarkdownTables(t *testing.T) {
	ss := spreadsheet.New()
	prices := ss.AddSheet()
	prices.SetName("Prices")
	for _, r := range [][]string{{"Plan", "Price"}, {"Basic", "100|200"}, {"Pro"}} {
		row := prices.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	empty := ss.AddSheet()
	empty.SetName("Empty")

	var buf bytes.Buffer
	skipUnlicensed(t, ss.Save(&buf))

	text, err := NewFileParserManager().ParseFile(bytes.NewReader(buf.Bytes()), "prices.xlsx")
	skipUnlicensed(t, err)

	want := "## Prices\n\n| Plan | Price |\n| --- | --- |\n| Basic | 100\\|200 |\n| Pro |  |"
	assert.Equal(t, want, text)
}
