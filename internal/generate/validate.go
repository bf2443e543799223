package generate

import (
	"context"

	"genline/internal/domain"
)

const checkPassed = "passed"

// Validator inspects generated files and reports on them.
type Validator interface {
	Validate(ctx context.Context, files []domain.GeneratedFile) domain.ValidationResult
}

// NoopValidator performs no analysis. It always reports every check as
// passed with a fixed quality score of 95 and no issues.
type NoopValidator struct{}

func (NoopValidator) Validate(context.Context, []domain.GeneratedFile) domain.ValidationResult {
	return domain.ValidationResult{
		CompilationCheck:  checkPassed,
		DependencyCheck:   checkPassed,
		NamingConventions: checkPassed,
		CodeQuality:       domain.CodeQuality{Score: 95, Issues: []string{}},
	}
}
