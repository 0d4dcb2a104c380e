package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// rule 级联中的一条规则：先匹配，再由 accept 校验并给出最终值。
// accept 返回 false 时继续尝试下一条规则。
type rule struct {
	tag     string
	pattern *regexp.Regexp
	accept  func(match []string) (string, bool)
}

// firstAccepted 按顺序尝试规则，每条规则只取全文第一个匹配。
// 规则顺序即优先级。
func firstAccepted(text string, rules []rule) (value string, tag string, ok bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, accepted := r.accept(m); accepted {
			return v, r.tag, true
		}
	}
	return "", "", false
}

// group 返回第 n 个捕获组
func group(n int) func([]string) (string, bool) {
	return func(m []string) (string, bool) {
		return m[n], true
	}
}

// reextract 从整个匹配片段中再提取一次裸值（去掉“电话:”之类的标签）
func reextract(bare *regexp.Regexp) func([]string) (string, bool) {
	return func(m []string) (string, bool) {
		v := bare.FindString(m[0])
		return v, v != ""
	}
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// collapseSpaces 去首尾空白并把内部空白折叠为单个空格
func collapseSpaces(s string) string {
	return whitespaceRunRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// runeLen 按字符计数
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// displayWidth 按显示宽度计数，全角/宽字符计 2
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}

// contextWindows 对每个关键词匹配取前后 radius 个字符的窗口，
// 窗口字符数大于 minRunes 时保留（去首尾空白后）。下标按字符计算并在两端截断。
func contextWindows(text string, pattern *regexp.Regexp, radius, minRunes int) []string {
	locs := pattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	runes := []rune(text)
	var out []string
	for _, loc := range locs {
		start := utf8.RuneCountInString(text[:loc[0]])
		end := start + utf8.RuneCountInString(text[loc[0]:loc[1]])
		window := runes[clampIndex(start-radius, len(runes)):clampIndex(end+radius, len(runes))]
		if len(window) > minRunes {
			out = append(out, strings.TrimSpace(string(window)))
		}
	}
	return out
}

// clampIndex 把下标限制在 [0, n]
func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// firstRunes 截取前 n 个字符
func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
