package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page 抓取到的网页
type Page struct {
	URL         string
	Title       string
	ContentType string
	// HTML 清理后的 <body> 内容；纯文本页面为空
	HTML string
	// Text 纯文本页面的原文
	Text string
	Raw  []byte
}

// PageFetcher 抓取网页并去掉与正文无关的节点
type PageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewPageFetcher maxBytes <= 0 时不限制大小
func NewPageFetcher(timeout time.Duration, maxBytes int64) *PageFetcher {
	return &PageFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// ErrPageTooLarge 页面超过抓取上限
var ErrPageTooLarge = errors.New("page too large")

const strippedSelectors = "script, style, noscript, nav, footer, iframe, svg, link, meta"

// Fetch 下载页面，只接受 text/html 与 text/plain
func (f *PageFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; chatbot-ingestion/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w (%d bytes)", url, ErrPageTooLarge, resp.ContentLength)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	// 分块传输没有Content-Length，读到上限之外的字节即拒绝，避免截断后的内容替换旧分块
	if f.maxBytes > 0 && int64(len(raw)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w (over %d bytes)", url, ErrPageTooLarge, f.maxBytes)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "text/html"), ct == "":
		page, err := ParseHTML(url, raw)
		if err != nil {
			return nil, err
		}
		page.ContentType = ct
		return page, nil
	case strings.Contains(ct, "text/plain"):
		text := string(raw)
		return &Page{URL: url, ContentType: ct, Raw: raw, Text: text, Title: firstLine(text, 120)}, nil
	default:
		return nil, fmt.Errorf("unsupported content-type: %s", ct)
	}
}

// ParseHTML 解析HTML，去掉脚本、样式、导航和页脚后保留<body>
func ParseHTML(url string, raw []byte) (*Page, error) {
	p := &Page{URL: url, ContentType: "text/html", Raw: raw}
	if err := p.clean(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) clean() error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Raw))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	p.Title = strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Find(strippedSelectors).Remove()
	body.Find("*").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("style")
		s.RemoveAttr("class")
		s.RemoveAttr("onclick")
	})

	html, err := body.Html()
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	p.HTML = strings.TrimSpace(html)
	if p.Title == "" {
		p.Title = firstLine(strings.TrimSpace(body.Text()), 120)
	}
	return nil
}

func firstLine(s string, max int) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(s), "\n", 2)[0])
	if r := []rune(line); len(r) > max {
		line = string(r[:max])
	}
	return line
}
