package storage

import "time"

// ResumeParsedMessage 简历解析完成事件，只携带非敏感的摘要字段
type ResumeParsedMessage struct {
	SubmissionUUID      string    `json:"submission_uuid"`
	OriginalFilename    string    `json:"original_filename"`
	FileExt             string    `json:"file_ext"`
	RawFileMD5          string    `json:"raw_file_md5"`
	OriginalObjectKey   string    `json:"original_object_key,omitempty"` // 未启用归档时为空
	ParsedAt            time.Time `json:"parsed_at"`
	HasName             bool      `json:"has_name"`
	EducationCount      int       `json:"education_count"`
	WorkExperienceCount int       `json:"work_experience_count"`
	SkillsCount         int       `json:"skills_count"`
}
