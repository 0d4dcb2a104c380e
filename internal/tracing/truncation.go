package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200
	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500
	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100
	// MaxFileNameLength 上传文件名最大长度
	MaxFileNameLength = 120
	// MaxResumeLength 简历文本预览最大长度
	MaxResumeLength = 150
)

// piiKeywords 属性名包含这些关键字时对值做掩码
var piiKeywords = []string{
	"email", "phone", "password", "id_card", "address", "name", "age",
	"secret", "token", "api_key",
	"身份证", "地址", "姓名", "年龄", "电话", "邮箱",
}

// SafeAttributeValue 确保属性值安全：敏感字段掩码，其余按 maxLength 截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理。
// 姓名类短值保留首尾字（"张三" -> "张*"，"王小明" -> "王*明"），
// 长值保留前后两位（"13812345678" -> "13*******78"）。
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)
	switch {
	case length == 1:
		return "*"
	case length == 2:
		return string(runes[0]) + "*"
	case length <= 4:
		return string(runes[0]) + strings.Repeat("*", length-2) + string(runes[length-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
	}
}

// TruncateString 截断字符串，保留首尾并以省略号连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 安全处理SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey 安全处理Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeFileName 安全处理上传文件名
func SafeFileName(name string) string {
	return TruncateString(name, MaxFileNameLength)
}

// SafeResumeContent 安全处理简历文本预览
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
