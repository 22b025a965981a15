package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// ErrNoExtractableText PDF中没有文本层（扫描件），需要视觉模型识别
var ErrNoExtractableText = errors.New("no extractable text")

// FileParser 文件解析器接口
type FileParser interface {
	Parse(reader io.Reader, filename string) (string, error)
	Supports(filename string) bool
}

// TextParser 文本文件解析器
type TextParser struct{}

func (p *TextParser) Supports(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv":
		return true
	}
	return false
}

func (p *TextParser) Parse(reader io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	return string(content), nil
}

// PDFParser PDF文件解析器，只提取文本层
type PDFParser struct{}

func (p *PDFParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

func (p *PDFParser) Parse(reader io.Reader, filename string) (string, error) {
	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取PDF文件失败: %w", err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return "", fmt.Errorf("解析PDF失败: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("获取PDF页数失败: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("读取第%d页失败: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("第%d页: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("提取第%d页文本失败: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrNoExtractableText
	}
	return sb.String(), nil
}

// WordParser Word文档解析器：页眉、正文段落、表格、页脚
type WordParser struct{}

func (p *WordParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".docx"
}

func (p *WordParser) Parse(reader io.Reader, filename string) (string, error) {
	docBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取Word文件失败: %w", err)
	}

	doc, err := document.Read(bytes.NewReader(docBytes), int64(len(docBytes)))
	if err != nil {
		return "", fmt.Errorf("解析Word文档失败: %w", err)
	}
	defer doc.Close()

	var parts []string
	for _, h := range doc.Headers() {
		parts = appendParagraphs(parts, h.Paragraphs())
	}
	parts = appendParagraphs(parts, doc.Paragraphs())

	for _, tbl := range doc.Tables() {
		var rows [][]string
		for _, row := range tbl.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				cells = append(cells, strings.Join(appendParagraphs(nil, cell.Paragraphs()), " "))
			}
			rows = append(rows, cells)
		}
		if table := MarkdownTable(rows); table != "" {
			parts = append(parts, table)
		}
	}

	for _, f := range doc.Footers() {
		parts = appendParagraphs(parts, f.Paragraphs())
	}
	return strings.Join(parts, "\n"), nil
}

func appendParagraphs(dst []string, paras []document.Paragraph) []string {
	for _, para := range paras {
		var sb strings.Builder
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			dst = append(dst, text)
		}
	}
	return dst
}

// ExcelParser Excel解析器，每个工作表渲染为一张markdown表格
type ExcelParser struct{}

func (p *ExcelParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".xlsx"
}

func (p *ExcelParser) Parse(reader io.Reader, filename string) (string, error) {
	excelBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取Excel文件失败: %w", err)
	}

	ss, err := spreadsheet.Read(bytes.NewReader(excelBytes), int64(len(excelBytes)))
	if err != nil {
		return "", fmt.Errorf("解析Excel文档失败: %w", err)
	}
	defer ss.Close()

	var sb strings.Builder
	for _, sheet := range ss.Sheets() {
		var rows [][]string
		for _, row := range sheet.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				cells = append(cells, cell.GetString())
			}
			rows = append(rows, cells)
		}
		table := MarkdownTable(rows)
		if table == "" {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", sheet.Name(), table)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// MarkdownTable 第一行作为表头，短行补齐，空表返回空串
func MarkdownTable(rows [][]string) string {
	width := 0
	var kept [][]string
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if len(row) > width {
			width = len(row)
		}
		kept = append(kept, row)
	}
	if len(kept) == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(row) {
				cell = escapeCell(row[i])
			}
			sb.WriteString(" ")
			sb.WriteString(cell)
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(kept[0])
	sb.WriteString("|")
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range kept[1:] {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// FileParserManager 文件解析器管理器
type FileParserManager struct {
	parsers []FileParser
}

// NewFileParserManager 创建文件解析器管理器
func NewFileParserManager() *FileParserManager {
	return &FileParserManager{
		parsers: []FileParser{
			&PDFParser{},
			&WordParser{},
			&ExcelParser{},
			&TextParser{},
		},
	}
}

// Supports 是否有解析器能处理该文件
func (m *FileParserManager) Supports(filename string) bool {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return true
		}
	}
	return false
}

// ParseFile 解析文件
func (m *FileParserManager) ParseFile(reader io.Reader, filename string) (string, error) {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return parser.Parse(reader, filename)
		}
	}
	return "", apperrors.NewUnsupportedFileError(filename)
}

// DetectMimeType 优先使用调用方给出的类型，否则按扩展名推断
func DetectMimeType(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if mt := mime.TypeByExtension(filepath.Ext(filename)); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	return "application/octet-stream"
}
