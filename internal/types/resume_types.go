package types

// Gender 取值
const (
	GenderMale   = "男"
	GenderFemale = "女"
)

// EntityLabel 命名实体类别
type EntityLabel string

const (
	// LabelPerson 人名实体，姓名兜底提取只消费该类别
	LabelPerson EntityLabel = "PERSON"
	// LabelOrg 组织机构
	LabelOrg EntityLabel = "ORG"
	// LabelLocation 地点
	LabelLocation EntityLabel = "LOC"
)

// EntitySpan 命名实体识别返回的片段
type EntitySpan struct {
	Text  string      `json:"text"`
	Label EntityLabel `json:"label"`
}

// ParsedResume 简历字段提取结果
// 所有字段缺省为空，未命中不是错误，由后续人工复核补全
type ParsedResume struct {
	Name           string   `json:"name"`
	Gender         string   `json:"gender"`
	Age            string   `json:"age"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	Education      []string `json:"education"`
	WorkExperience []string `json:"work_experience"`
	Skills         []string `json:"skills"`
}

// NewParsedResume 返回所有列表字段已初始化的空结果，保证序列化为 [] 而不是 null
func NewParsedResume() *ParsedResume {
	return &ParsedResume{
		Education:      []string{},
		WorkExperience: []string{},
		Skills:         []string{},
	}
}

// IsEmpty 判断是否一个字段都没有提取到
func (r *ParsedResume) IsEmpty() bool {
	return r.Name == "" && r.Gender == "" && r.Age == "" && r.Phone == "" && r.Email == "" &&
		len(r.Education) == 0 && len(r.WorkExperience) == 0 && len(r.Skills) == 0
}
