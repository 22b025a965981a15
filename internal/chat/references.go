package chat

import (
	"fmt"
	"strings"

	"github.com/aihub/chatbot-go/internal/knowledge"
	"github.com/aihub/chatbot-go/internal/llm"
)

// citationReferences 模型返回的url_citation标注
func citationReferences(choice llm.Choice) []ReferenceItem {
	var refs []ReferenceItem
	for _, a := range choice.Message.Annotations {
		if a.URLCitation == nil || a.URLCitation.URL == "" {
			continue
		}
		c := a.URLCitation
		refs = append(refs, ReferenceItem{
			Title:      c.Title,
			URL:        c.URL,
			StartIndex: c.StartIndex,
			EndIndex:   c.EndIndex,
			Text:       c.Content,
		})
	}
	return refs
}

// sourceReferences 检索命中的知识块，每个 (fileName, fileHash) 一条
func sourceReferences(host string, retrieved []knowledge.ScoredChunk) []ReferenceItem {
	host = strings.TrimRight(host, "/")
	seen := make(map[[2]string]struct{})
	var refs []ReferenceItem
	for _, sc := range retrieved {
		c := sc.Chunk
		if c.FileHash == "" {
			continue
		}
		key := [2]string{c.FileName, c.FileHash}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		title := c.FileName
		if title == "" {
			title = c.URL
		}
		refs = append(refs, ReferenceItem{
			Title: title,
			URL:   fmt.Sprintf("%s/i/%s", host, c.FileHash),
		})
	}
	return refs
}

// formatReferences 编号列表，按 (title, url) 去重
func formatReferences(refs []ReferenceItem) string {
	seen := make(map[[2]string]struct{})
	var sb strings.Builder
	n := 0
	for _, r := range refs {
		key := [2]string{r.Title, r.URL}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		n++
		fmt.Fprintf(&sb, "\n%d. %s", n, strings.TrimSpace(r.Title+" "+r.URL))
	}
	if n == 0 {
		return ""
	}
	return "\n\n" + referenceHeader + sb.String()
}
