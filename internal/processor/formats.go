package processor

import (
	"context"

	"resume-extractor/internal/config"
	"resume-extractor/internal/logger"
	"resume-extractor/internal/parser"
)

// BuildFormats 根据配置构建各扩展名的文本提取器。
// .doc 在配置了 Tika 时交给 Tika，否则与 .docx 一样由 gooxml 尝试读取。
func BuildFormats(ctx context.Context, cfg config.ParserConfig) (parser.Formats, error) {
	initLogger := logger.Component("formats_init")

	pdfExtractor, err := parser.NewEinoPDFExtractor(ctx,
		parser.WithEinoLogger(logger.Component("pdf_parser")),
		parser.WithEinoTimeout(cfg.PDFTimeout()),
	)
	if err != nil {
		return nil, err
	}
	docx := parser.NewDocxExtractor()

	formats := parser.Formats{
		".pdf":  pdfExtractor,
		".docx": docx,
		".doc":  docx,
	}

	if cfg.TikaServerURL != "" {
		initLogger.Info().Str("tika_server_url", cfg.TikaServerURL).Msg("检测到Tika配置，.doc 将使用Tika解析")
		formats[".doc"] = parser.NewTikaExtractor(cfg.TikaServerURL,
			parser.WithTimeout(cfg.TikaTimeout()),
			parser.WithTikaLogger(logger.Component("tika_parser")),
		)
	} else {
		initLogger.Info().Msg("未配置Tika，.doc 将尝试按 docx 读取")
	}
	return formats, nil
}
