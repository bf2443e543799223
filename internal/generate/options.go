package generate

import (
	"log/slog"
	"strings"

	"genline/internal/naming"
	"genline/internal/plan"
)

// Plan option keys understood by the generator.
const (
	OptNamingStrategy = plan.OptionNamingStrategy
	OptIDGeneration   = plan.OptionIDGeneration
	OptAuditFields    = plan.OptionAuditFields
)

var idStrategies = map[string]bool{"IDENTITY": true, "SEQUENCE": true, "UUID": true, "AUTO": true}

type genOptions struct {
	namingStrategy string
	idGeneration   string
	auditFields    bool
}

// optionsFrom reads generator options from a plan's option map. Unknown or
// mistyped values fall back to defaults and are logged.
func optionsFrom(opts map[string]any, logger *slog.Logger) genOptions {
	out := genOptions{
		namingStrategy: plan.DefaultNamingStrategy,
		idGeneration:   plan.DefaultIDGeneration,
		auditFields:    plan.DefaultAuditFields,
	}
	if v, ok := opts[OptNamingStrategy]; ok {
		switch s, _ := v.(string); s {
		case "snake_case", "camelCase", "PascalCase":
			out.namingStrategy = s
		default:
			logger.Warn("ignoring plan option", "option", OptNamingStrategy, "value", v)
		}
	}
	if v, ok := opts[OptIDGeneration]; ok {
		s, _ := v.(string)
		if s = strings.ToUpper(s); idStrategies[s] {
			out.idGeneration = s
		} else {
			logger.Warn("ignoring plan option", "option", OptIDGeneration, "value", v)
		}
	}
	if v, ok := opts[OptAuditFields]; ok {
		if b, isBool := v.(bool); isBool {
			out.auditFields = b
		} else {
			logger.Warn("ignoring plan option", "option", OptAuditFields, "value", v)
		}
	}
	return out
}

// tableName applies the naming strategy to the physical table name.
func (o genOptions) tableName(name string) string {
	switch o.namingStrategy {
	case "camelCase":
		return naming.CamelCase(name)
	case "PascalCase":
		return naming.PascalCase(name)
	}
	return name
}
