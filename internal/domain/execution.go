package domain

import "time"

type FileAction string

const (
	ActionCreate FileAction = "create"
	ActionModify FileAction = "modify"
	ActionDelete FileAction = "delete"
)

// Category names, in the order they appear for each table.
const (
	CategoryEntities      = "Entity Classes"
	CategoryRepositories  = "Repositories"
	CategoryServices      = "Services"
	CategoryControllers   = "Controllers"
	CategoryConfiguration = "Configuration"
)

type ChangeSummary struct {
	Added []string `json:"added"`
}

type GeneratedFile struct {
	Path    string         `json:"path"`
	Action  FileAction     `json:"action" enum:"create,modify,delete"`
	Content string         `json:"content"`
	Size    int            `json:"size"`
	Changes *ChangeSummary `json:"changes,omitempty"`
}

type FileCategory struct {
	Category string          `json:"category"`
	Files    []GeneratedFile `json:"files"`
}

type ExecutionSummary struct {
	TablesProcessed   int `json:"tables_processed"`
	FilesGenerated    int `json:"files_generated"`
	FilesModified     int `json:"files_modified"`
	DependenciesAdded int `json:"dependencies_added"`
	TotalLinesOfCode  int `json:"total_lines_of_code"`
}

type PostExecutionStep struct {
	Step        int    `json:"step"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type CodeQuality struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

type ValidationResult struct {
	CompilationCheck  string      `json:"compilation_check"`
	DependencyCheck   string      `json:"dependency_check"`
	NamingConventions string      `json:"naming_conventions"`
	CodeQuality       CodeQuality `json:"code_quality"`
}

type ExecutionMetadata struct {
	ExecutionTime    string    `json:"execution_time"`
	ElapsedMillis    int64     `json:"elapsed_ms"`
	GeneratorVersion string    `json:"generator_version"`
	StandardsVersion string    `json:"standards_version"`
	CompletedAt      time.Time `json:"completed_at"`
}

type ExecutionResult struct {
	ExecutionID        string              `json:"execution_id"`
	PlanID             string              `json:"plan_id"`
	Status             string              `json:"status" enum:"success"`
	Summary            ExecutionSummary    `json:"summary"`
	GeneratedFiles     []FileCategory      `json:"generated_files"`
	PostExecutionSteps []PostExecutionStep `json:"post_execution_steps"`
	Validation         ValidationResult    `json:"validation"`
	Metadata           ExecutionMetadata   `json:"metadata"`
}

// Files flattens every category in order.
func (r *ExecutionResult) Files() []GeneratedFile {
	var out []GeneratedFile
	for _, c := range r.GeneratedFiles {
		out = append(out, c.Files...)
	}
	return out
}
