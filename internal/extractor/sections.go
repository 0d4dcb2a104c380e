package extractor

import (
	"regexp"
	"strings"
)

// sectionSpec 描述一个“带标题的段落”字段：标题定位、正文切分、条目过滤和兜底策略
type sectionSpec struct {
	field    string
	headers  []*regexp.Regexp // 先带冒号，再不带冒号
	split    func(body string) []string
	measure  func(item string) int
	minLen   int // measure(条目) <= minLen 时丢弃
	fallback func(text string) []string
}

// sectionHeaders 生成两条标题规则：标签+冒号，以及仅标签
func sectionHeaders(labels ...string) []*regexp.Regexp {
	alt := "(?:" + strings.Join(labels, "|") + ")"
	return []*regexp.Regexp{
		regexp.MustCompile(alt + `[：:]\s*`),
		regexp.MustCompile(alt + `\s*`),
	}
}

// sectionBody 取标题之后直到第一个空行（或文本末尾）的内容
func sectionBody(text string, headerEnd int) string {
	body := text[headerEnd:]
	if i := strings.Index(body, "\n\n"); i >= 0 {
		body = body[:i]
	}
	return body
}

// 条目以年份开头（如 2018、18年）时另起一条
var entryBreakRe = regexp.MustCompile(`\n(?:\d{4}|\d{2}年)`)

// splitAtYearLines 在“换行+年份”处切分，年份留在下一条的开头
func splitAtYearLines(body string) []string {
	var parts []string
	start := 0
	for _, loc := range entryBreakRe.FindAllStringIndex(body, -1) {
		parts = append(parts, body[start:loc[0]])
		start = loc[0] + 1
	}
	return append(parts, body[start:])
}

var skillSeparatorRe = regexp.MustCompile(`[,，、；;]`)

func splitSkills(body string) []string {
	return skillSeparatorRe.Split(body, -1)
}

var (
	schoolRe  = regexp.MustCompile(`(?:大学|学院|学校)[^，。\n]{0,30}`)
	companyRe = regexp.MustCompile(`(?:公司|企业|集团)[^，。\n]{0,30}`)

	skillKeywords   = []string{"精通", "熟悉", "掌握", "了解", "熟练", "擅长", "熟练使用", "熟练操作"}
	skillKeywordRes = func() []*regexp.Regexp {
		res := make([]*regexp.Regexp, 0, len(skillKeywords))
		for _, kw := range skillKeywords {
			res = append(res, regexp.MustCompile(regexp.QuoteMeta(kw)+`[^，。\n]{0,30}`))
		}
		return res
	}()
)

const (
	educationWindow     = 50
	educationMinWindow  = 10
	experienceWindow    = 100
	experienceMinWindow = 20
	skillMinRunes       = 3
)

var (
	educationSpec = sectionSpec{
		field:    "education",
		headers:  sectionHeaders("教育背景", "教育经历", "学习经历", "学历"),
		split:    splitAtYearLines,
		measure:  runeLen,
		minLen:   5,
		fallback: func(text string) []string {
			return contextWindows(text, schoolRe, educationWindow, educationMinWindow)
		},
	}

	experienceSpec = sectionSpec{
		field:    "work_experience",
		headers:  sectionHeaders("工作经历", "工作经验", "工作背景", "工作履历"),
		split:    splitAtYearLines,
		measure:  runeLen,
		minLen:   10,
		fallback: func(text string) []string {
			return contextWindows(text, companyRe, experienceWindow, experienceMinWindow)
		},
	}

	skillsSpec = sectionSpec{
		field:    "skills",
		headers:  sectionHeaders("技能特长", "专业技能", "技术技能", "个人技能", "核心技能"),
		split:    splitSkills,
		measure:  displayWidth, // 全角字符计 2
		minLen:   2,
		fallback: keywordSkills,
	}
)

// keywordSkills 按关键词顺序收集“精通xxx”之类的片段
func keywordSkills(text string) []string {
	var skills []string
	for _, re := range skillKeywordRes {
		for _, m := range re.FindAllString(text, -1) {
			skill := strings.TrimSpace(m)
			if runeLen(skill) > skillMinRunes {
				skills = append(skills, skill)
			}
		}
	}
	return skills
}

// fromHeaders 依次尝试标题规则，第一条能产出条目的规则胜出
func (s sectionSpec) fromHeaders(text string) ([]string, int) {
	for i, header := range s.headers {
		loc := header.FindStringIndex(text)
		if loc == nil {
			continue
		}
		var entries []string
		for _, item := range s.split(sectionBody(text, loc[1])) {
			item = collapseSpaces(item)
			if item == "" || s.measure(item) <= s.minLen {
				continue
			}
			entries = append(entries, item)
		}
		if len(entries) > 0 {
			return entries, i
		}
	}
	return nil, -1
}

// ExtractEducation 提取教育经历
func (e *FieldExtractor) ExtractEducation(text string) []string {
	return e.extractSection(educationSpec, text)
}

// ExtractWorkExperience 提取工作经历
func (e *FieldExtractor) ExtractWorkExperience(text string) []string {
	return e.extractSection(experienceSpec, text)
}

// ExtractSkills 提取技能
func (e *FieldExtractor) ExtractSkills(text string) []string {
	return e.extractSection(skillsSpec, text)
}

func (e *FieldExtractor) extractSection(spec sectionSpec, text string) []string {
	return guard(e.log, spec.field, []string{}, func() ([]string, error) {
		if entries, header := spec.fromHeaders(text); len(entries) > 0 {
			e.log.Debug().Str("field", spec.field).Int("header_rule", header).Int("count", len(entries)).Msg("通过段落标题提取")
			return entries, nil
		}
		if entries := spec.fallback(text); len(entries) > 0 {
			e.log.Debug().Str("field", spec.field).Int("count", len(entries)).Msg("通过关键词兜底提取")
			return entries, nil
		}
		e.log.Debug().Str("field", spec.field).Msg("未找到段落")
		return []string{}, nil
	})
}
