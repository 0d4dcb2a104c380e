package extractor

import (
	"regexp"
	"strings"
)

// 空白字符集合（不含换行）。\s 在 RE2 中只覆盖 ASCII，这里补上 Unicode 空格，
// 让全角空格、不间断空格等也能被折叠。
const inlineSpaceClass = `\t\v\f\r \x{1c}-\x{1f}\x{85}\p{Z}`

var (
	lineEndingReplacer  = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	punctuationReplacer = strings.NewReplacer("：", ":", "，", ",", "、", ",")

	blankLinesRe  = regexp.MustCompile(`\n[\n` + inlineSpaceClass + `]*\n`)
	inlineSpaceRe = regexp.MustCompile(`[` + inlineSpaceClass + `]+`)
)

// Normalize 预处理简历原始文本，依次执行：
//  1. 统一换行符为 \n
//  2. 全角标点 ：，、 折叠为 ASCII
//  3. 多个空行合并为一个空行
//  4. 行内连续空白合并为单个空格
//
// 最后去掉首尾空白。空行合并必须在行内空白合并之前，段落分隔才能保留下来。
func Normalize(raw string) string {
	text := lineEndingReplacer.Replace(raw)
	text = punctuationReplacer.Replace(text)
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = inlineSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
