package extractor

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"resume-extractor/internal/types"
)

const (
	// 中文姓名通常 2-4 个字
	MinNameRunes = 2
	MaxNameRunes = 4

	// 合理的年龄范围
	MinAge = 18
	MaxAge = 65

	// 姓名兜底识别只分析前 1000 个字符
	NERWindowRunes = 1000
)

var (
	nameAsideRe = regexp.MustCompile(`[（(].*?[)）]`)

	nameRules = []rule{
		{tag: "姓名", pattern: regexp.MustCompile(`姓名[：:]\s*([^\n]+)`), accept: acceptName},
		{tag: "姓 名", pattern: regexp.MustCompile(`姓\s*名[：:]\s*([^\n]+)`), accept: acceptName},
		{tag: "的简历", pattern: regexp.MustCompile(`([^\n]{2,4})\s*的简历`), accept: acceptName},
		{tag: "个人简历", pattern: regexp.MustCompile(`个人简历[：:]\s*([^\n]+)`), accept: acceptName},
		{tag: "的个人简历", pattern: regexp.MustCompile(`([^\n]{2,4})\s*的个人简历`), accept: acceptName},
	}

	genderRules = []rule{
		{tag: "性别", pattern: regexp.MustCompile(`性别[：:]\s*([男女])`), accept: group(1)},
		{tag: "X性", pattern: regexp.MustCompile(`([男女])\s*性`), accept: group(1)},
		{tag: "X生", pattern: regexp.MustCompile(`([男女])\s*生`), accept: group(1)},
	}

	phoneBareRe = regexp.MustCompile(`1[3-9]\d{9}`)
	phoneRules  = []rule{
		{tag: "bare", pattern: phoneBareRe, accept: reextract(phoneBareRe)},
		{tag: "电话", pattern: regexp.MustCompile(`电话[：:]\s*1[3-9]\d{9}`), accept: reextract(phoneBareRe)},
		{tag: "手机", pattern: regexp.MustCompile(`手机[：:]\s*1[3-9]\d{9}`), accept: reextract(phoneBareRe)},
		{tag: "联系方式", pattern: regexp.MustCompile(`联系方式[：:]\s*1[3-9]\d{9}`), accept: reextract(phoneBareRe)},
		{tag: "联系电话", pattern: regexp.MustCompile(`联系电话[：:]\s*1[3-9]\d{9}`), accept: reextract(phoneBareRe)},
		{tag: "手机号码", pattern: regexp.MustCompile(`手机号码[：:]\s*1[3-9]\d{9}`), accept: reextract(phoneBareRe)},
	}

	emailBareRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	emailRules  = []rule{
		{tag: "bare", pattern: emailBareRe, accept: reextract(emailBareRe)},
		{tag: "邮箱", pattern: regexp.MustCompile(`邮箱[：:]\s*` + emailBareRe.String()), accept: reextract(emailBareRe)},
		{tag: "Email", pattern: regexp.MustCompile(`Email[：:]\s*` + emailBareRe.String()), accept: reextract(emailBareRe)},
		{tag: "电子邮箱", pattern: regexp.MustCompile(`电子邮箱[：:]\s*` + emailBareRe.String()), accept: reextract(emailBareRe)},
		{tag: "邮箱地址", pattern: regexp.MustCompile(`邮箱地址[：:]\s*` + emailBareRe.String()), accept: reextract(emailBareRe)},
	}
)

// CleanName 去掉括号内的补充说明（半角与全角），并校验长度
func CleanName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	name = strings.TrimSpace(nameAsideRe.ReplaceAllString(name, ""))
	n := runeLen(name)
	return name, n >= MinNameRunes && n <= MaxNameRunes
}

func acceptName(m []string) (string, bool) {
	return CleanName(m[1])
}

// ageRules 依赖当前年份，按调用时的时钟构造
func (e *FieldExtractor) ageRules() []rule {
	direct := func(m []string) (string, bool) {
		age, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return validAge(age)
	}
	fromBirthYear := func(m []string) (string, bool) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return validAge(e.now().Year() - year)
	}
	return []rule{
		{tag: "年龄", pattern: ageLabelRe, accept: direct},
		{tag: "岁", pattern: ageSuffixRe, accept: direct},
		{tag: "年出生", pattern: birthYearRe, accept: fromBirthYear},
	}
}

var (
	ageLabelRe  = regexp.MustCompile(`年龄[：:]\s*(\d{1,2})`)
	ageSuffixRe = regexp.MustCompile(`(\d{1,2})\s*岁`)
	birthYearRe = regexp.MustCompile(`(\d{4})年出生`)
)

func validAge(age int) (string, bool) {
	if age < MinAge || age > MaxAge {
		return "", false
	}
	return strconv.Itoa(age), true
}

// ExtractName 提取姓名：先走规则级联，全部落空再用实体识别兜底
func (e *FieldExtractor) ExtractName(ctx context.Context, text string) string {
	return guard(e.log, "name", "", func() (string, error) {
		if name, tag, ok := firstAccepted(text, nameRules); ok {
			e.log.Debug().Str("field", "name").Str("rule", tag).Str("value", name).Msg("提取到姓名")
			return name, nil
		}

		spans, err := e.recognizer.FindPersonEntities(ctx, firstRunes(text, NERWindowRunes))
		if err != nil {
			return "", err
		}
		for _, span := range spans {
			if span.Label != types.LabelPerson {
				continue
			}
			if n := runeLen(span.Text); n >= MinNameRunes && n <= MaxNameRunes {
				e.log.Debug().Str("field", "name").Str("rule", "ner").Str("value", span.Text).Msg("通过实体识别提取到姓名")
				return span.Text, nil
			}
		}

		e.log.Debug().Str("field", "name").Msg("未找到姓名信息")
		return "", nil
	})
}

// ExtractGender 提取性别，返回 男/女 或空
func (e *FieldExtractor) ExtractGender(text string) string {
	return e.extractScalar("gender", text, genderRules)
}

// ExtractAge 提取年龄，只接受 [18, 65]
func (e *FieldExtractor) ExtractAge(text string) string {
	return e.extractScalar("age", text, e.ageRules())
}

// ExtractPhone 提取 11 位手机号
func (e *FieldExtractor) ExtractPhone(text string) string {
	return e.extractScalar("phone", text, phoneRules)
}

// ExtractEmail 提取邮箱地址
func (e *FieldExtractor) ExtractEmail(text string) string {
	return e.extractScalar("email", text, emailRules)
}

func (e *FieldExtractor) extractScalar(field, text string, rules []rule) string {
	return guard(e.log, field, "", func() (string, error) {
		v, tag, ok := firstAccepted(text, rules)
		if !ok {
			e.log.Debug().Str("field", field).Msg("未找到字段")
			return "", nil
		}
		e.log.Debug().Str("field", field).Str("rule", tag).Str("value", v).Msg("提取到字段")
		return v, nil
	})
}
