package schedule

import "context"

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, tpl ClassTemplate) (*ClassTemplate, error)
	GetTemplateByID(ctx context.Context, id int64) (*ClassTemplate, error)
	ListTemplates(ctx context.Context, onlyActive bool) ([]ClassTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error
}
