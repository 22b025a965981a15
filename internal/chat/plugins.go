package chat

import (
	"regexp"
	"strings"

	"github.com/aihub/chatbot-go/internal/models"
)

// PostProcessor 回复后处理插件；Channels为空表示所有渠道
type PostProcessor struct {
	Name     string
	Channels []models.Channel
	Process  func(text string) string
}

func (p PostProcessor) supports(ch models.Channel) bool {
	if len(p.Channels) == 0 {
		return true
	}
	for _, c := range p.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// PluginRegistry 静态注册表，声明顺序即匹配顺序
type PluginRegistry struct {
	ordered []PostProcessor
}

func NewPluginRegistry(processors ...PostProcessor) *PluginRegistry {
	return &PluginRegistry{ordered: processors}
}

// DefaultPlugins 内置插件
func DefaultPlugins() *PluginRegistry {
	return NewPluginRegistry(
		PostProcessor{
			Name:     "strip_markdown",
			Channels: []models.Channel{models.ChannelLine, models.ChannelFacebook},
			Process:  stripMarkdown,
		},
		PostProcessor{Name: "collapse_blank_lines", Process: collapseBlankLines},
		PostProcessor{Name: "thai_digits", Process: thaiDigits},
	)
}

// Apply 只执行第一个已启用且支持该渠道的插件，返回处理后的文本和插件名
func (r *PluginRegistry) Apply(text string, enabled []string, ch models.Channel) (string, string) {
	if len(enabled) == 0 {
		return text, ""
	}
	set := make(map[string]struct{}, len(enabled))
	for _, name := range enabled {
		set[name] = struct{}{}
	}
	for _, p := range r.ordered {
		if _, ok := set[p.Name]; !ok || !p.supports(ch) {
			continue
		}
		return p.Process(text), p.Name
	}
	return text, ""
}

var (
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
	mdBold     = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	mdHeading  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBullet   = regexp.MustCompile(`(?m)^(\s*)[*-]\s+`)
	mdCode     = regexp.MustCompile("`([^`]*)`")
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown LINE/Facebook不渲染markdown
func stripMarkdown(text string) string {
	text = mdLink.ReplaceAllString(text, "$1 $2")
	text = mdBold.ReplaceAllString(text, "$2")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdBullet.ReplaceAllString(text, "${1}• ")
	text = mdCode.ReplaceAllString(text, "$1")
	return text
}

func collapseBlankLines(text string) string {
	return blankLines.ReplaceAllString(strings.TrimSpace(text), "\n\n")
}

var thaiDigitReplacer = strings.NewReplacer(
	"0", "๐", "1", "๑", "2", "๒", "3", "๓", "4", "๔",
	"5", "๕", "6", "๖", "7", "๗", "8", "๘", "9", "๙",
)

func thaiDigits(text string) string {
	return thaiDigitReplacer.Replace(text)
}
