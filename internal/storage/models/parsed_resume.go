package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"resume-extractor/internal/types"
)

// ParsedResumeRecord 简历解析结果表，列表字段以 JSON 数组存储
type ParsedResumeRecord struct {
	SubmissionUUID     string         `gorm:"type:char(36);primaryKey"`
	OriginalFilename   string         `gorm:"type:varchar(255)"`
	FileExt            string         `gorm:"type:varchar(16)"`
	RawFileMD5         string         `gorm:"type:char(32);index:idx_pr_raw_file_md5"`
	OriginalObjectKey  string         `gorm:"type:varchar(1024)"`
	Name               string         `gorm:"type:varchar(64)"`
	Gender             string         `gorm:"type:varchar(8)"`
	Age                string         `gorm:"type:varchar(8)"`
	Phone              string         `gorm:"type:varchar(32);index:idx_pr_phone"`
	Email              string         `gorm:"type:varchar(255);index:idx_pr_email"`
	EducationJSON      datatypes.JSON `gorm:"type:json"`
	WorkExperienceJSON datatypes.JSON `gorm:"type:json"`
	SkillsJSON         datatypes.JSON `gorm:"type:json"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ParsedResumeRecord) TableName() string {
	return "parsed_resumes"
}

// NewParsedResumeRecord 由解析结果构造数据库记录
func NewParsedResumeRecord(submissionUUID, filename, ext, md5Hex, objectKey string, r *types.ParsedResume) (*ParsedResumeRecord, error) {
	edu, err := marshalList(r.Education)
	if err != nil {
		return nil, fmt.Errorf("序列化教育经历失败: %w", err)
	}
	work, err := marshalList(r.WorkExperience)
	if err != nil {
		return nil, fmt.Errorf("序列化工作经历失败: %w", err)
	}
	skills, err := marshalList(r.Skills)
	if err != nil {
		return nil, fmt.Errorf("序列化技能失败: %w", err)
	}
	return &ParsedResumeRecord{
		SubmissionUUID:     submissionUUID,
		OriginalFilename:   filename,
		FileExt:            ext,
		RawFileMD5:         md5Hex,
		OriginalObjectKey:  objectKey,
		Name:               r.Name,
		Gender:             r.Gender,
		Age:                r.Age,
		Phone:              r.Phone,
		Email:              r.Email,
		EducationJSON:      edu,
		WorkExperienceJSON: work,
		SkillsJSON:         skills,
	}, nil
}

// ToParsedResume 还原为解析结果
func (rec *ParsedResumeRecord) ToParsedResume() (*types.ParsedResume, error) {
	r := types.NewParsedResume()
	r.Name, r.Gender, r.Age, r.Phone, r.Email = rec.Name, rec.Gender, rec.Age, rec.Phone, rec.Email

	for _, col := range []struct {
		raw  datatypes.JSON
		dest *[]string
	}{
		{rec.EducationJSON, &r.Education},
		{rec.WorkExperienceJSON, &r.WorkExperience},
		{rec.SkillsJSON, &r.Skills},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("解析JSON列失败: %w", err)
		}
		if *col.dest == nil {
			*col.dest = []string{}
		}
	}
	return r, nil
}

func marshalList(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
