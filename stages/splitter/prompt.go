package splitter

import (
	"errors"
	"fmt"
	"strings"

	"channel-digest/shared/report"
)

// CategoriesPlaceholder is replaced with the discovered category lines.
const CategoriesPlaceholder = "{categories}"

// ErrNoCategories means the discovery report has no "- " bullet lines.
var ErrNoCategories = errors.New("no categories found (expected lines starting with '- ')")

// BuildPrompt injects the category bullets of a discovery report into a
// categorization prompt template. It returns the prompt and the category lines.
func BuildPrompt(reportText, template string) (string, []string, error) {
	if !strings.Contains(template, CategoriesPlaceholder) {
		return "", nil, fmt.Errorf("template has no %s placeholder", CategoriesPlaceholder)
	}
	categories := report.ExtractCategoryLines(reportText)
	if len(categories) == 0 {
		return "", nil, ErrNoCategories
	}
	return strings.ReplaceAll(template, CategoriesPlaceholder, strings.Join(categories, "\n")), categories, nil
}
