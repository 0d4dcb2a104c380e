package ner

import (
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"resume-extractor/internal/config"
	"resume-extractor/internal/extractor"
	"resume-extractor/internal/logger"
)

// NewRecognizer 按配置创建实体识别器
func NewRecognizer(cfg config.NERConfig) (extractor.PersonRecognizer, error) {
	log := logger.Component("ner")

	switch cfg.Type {
	case config.NERTypeLLM:
		chatModel, err := NewQwenChatModel(cfg.APIKey, cfg.Model, cfg.APIURL, cfg.Timeout())
		if err != nil {
			return nil, fmt.Errorf("初始化千问模型失败: %w", err)
		}
		log.Info().Str("model", chatModel.modelName).Int("qpm", cfg.QPM).Msg("使用 LLM 实体识别")
		var base model.BaseChatModel = chatModel
		if cfg.QPM > 0 {
			base = NewRateLimitedChatModel(chatModel, cfg.QPM)
		}
		return NewLLMRecognizer(base,
			WithMaxRetries(cfg.MaxRetries),
			WithCallTimeout(cfg.Timeout()),
		)
	case config.NERTypeDictionary, "":
		log.Info().Msg("使用姓氏词典实体识别")
		return NewDictionaryRecognizer(), nil
	default:
		return nil, fmt.Errorf("未知的实体识别类型: %s", cfg.Type)
	}
}
