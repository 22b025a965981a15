package knowledge

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 分隔符优先级：段落、换行、句末标点、空格，最后按字符切分
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "。", " ", ""}

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("chunk overlap must be >= 0 and smaller than chunk size")
)

// Chunk 分块结果，Start/End 为原文中的字符(rune)偏移，左闭右开
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Splitter 递归字符分块器，纯函数无IO
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter 创建分块器
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, ErrInvalidOverlap
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// SplitText 便捷函数，只返回文本
func SplitText(text string, chunkSize, chunkOverlap int) ([]string, error) {
	s, err := NewSplitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	chunks := s.Split(text)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out, nil
}

// piece 不可再分的片段
type piece struct {
	text  string
	start int
	size  int
}

// Split 切分文本。相邻块是原文的连续片段，后一块以前一块末尾至多 chunkOverlap 个字符开头
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}
	pieces := s.atomize(text, 0, s.separators, nil)
	return s.merge(pieces)
}

// atomize 按优先级递归切分，直到每个片段不超过 chunkSize；分隔符保留在前一片段末尾
func (s *Splitter) atomize(text string, offset int, separators []string, out []piece) []piece {
	sep, rest := pickSeparator(text, separators)

	var parts []string
	if sep == "" {
		parts = splitRunes(text)
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	for _, part := range parts {
		if part == "" {
			continue
		}
		n := utf8.RuneCountInString(part)
		if n <= s.chunkSize {
			out = append(out, piece{text: part, start: offset, size: n})
		} else {
			out = s.atomize(part, offset, rest, out)
		}
		offset += n
	}
	return out
}

func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

func splitRunes(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text))
	for len(text) > 0 {
		_, n := utf8.DecodeRuneInString(text)
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

// merge 贪心合并片段，换块时保留不超过 chunkOverlap 的尾部片段作为上下文
func (s *Splitter) merge(pieces []piece) []Chunk {
	var (
		chunks []Chunk
		window []piece
		total  int
	)

	emit := func() {
		var b strings.Builder
		for _, p := range window {
			b.WriteString(p.text)
		}
		last := window[len(window)-1]
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  b.String(),
			Start: window[0].start,
			End:   last.start + last.size,
		})
	}

	for _, p := range pieces {
		if total+p.size > s.chunkSize && len(window) > 0 {
			emit()
			for len(window) > 0 && (total > s.chunkOverlap || total+p.size > s.chunkSize) {
				total -= window[0].size
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.size
	}
	if len(window) > 0 {
		emit()
	}
	return chunks
}
