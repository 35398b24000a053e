package expr

import "errors"

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка выполнения шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)
