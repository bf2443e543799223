package plan

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"genline/internal/domain"
)

const (
	StatusReadyForInput = "ready_for_input"

	minFrameworkVersion = "2.7.0"
	minLanguageVersion  = "11"
)

// Customizable plan options and the values used when a plan leaves them unset.
const (
	OptionNamingStrategy = "naming_strategy"
	OptionIDGeneration   = "id_generation"
	OptionAuditFields    = "audit_fields"

	DefaultNamingStrategy = "snake_case"
	DefaultIDGeneration   = "IDENTITY"
	DefaultAuditFields    = true
)

// Summary is the caller-facing view of a plan: what was detected, what
// will be generated and what to send next.
type Summary struct {
	PlanID          string          `json:"plan_id"`
	Capability      string          `json:"capability"`
	Status          string          `json:"status"`
	PlanStatus      string          `json:"plan_status"`
	ProjectAnalysis ProjectAnalysis `json:"project_analysis"`
	ProposedChanges ProposedChanges `json:"proposed_changes"`
	Options         PlanOptions     `json:"options"`
	Impact          Impact          `json:"impact"`
	Compatibility   Compatibility   `json:"compatibility"`
	NextSteps       NextSteps       `json:"next_steps"`
	ExpiresIn       string          `json:"expires_in"`
	Created         time.Time       `json:"created"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

type ProjectAnalysis struct {
	DetectedFramework string            `json:"detected_framework"`
	Language          string            `json:"language"`
	BuildTool         string            `json:"build_tool"`
	BasePackage       string            `json:"base_package"`
	ExistingStructure ExistingStructure `json:"existing_structure"`
}

type ExistingStructure struct {
	HasJPA              bool     `json:"has_jpa"`
	HasDatabase         bool     `json:"has_database"`
	HasLombok           bool     `json:"has_lombok"`
	HasValidation       bool     `json:"has_validation"`
	CurrentDependencies []string `json:"current_dependencies"`
}

type ProposedChanges struct {
	Summary    string      `json:"summary"`
	Components []Component `json:"components"`
}

type Component struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Items       []ComponentItem `json:"items"`
}

// ComponentItem is either a dependency (Name, Purpose) or a generated
// component (Component, Location); unused fields are omitted.
type ComponentItem struct {
	Name        string   `json:"name,omitempty"`
	Purpose     string   `json:"purpose,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Selected    bool     `json:"selected,omitempty"`
	Component   string   `json:"component,omitempty"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	Location    string   `json:"location,omitempty"`
}

type PlanOptions struct {
	Current      map[string]any `json:"current"`
	Customizable []CustomOption `json:"customizable"`
}

type CustomOption struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Options     []string `json:"options,omitempty"`
	Default     any      `json:"default"`
	Description string   `json:"description,omitempty"`
}

type Impact struct {
	FilesCreated         string `json:"files_created"`
	FilesModified        int    `json:"files_modified"`
	EstimatedLinesOfCode string `json:"estimated_lines_of_code"`
	BreakingChanges      bool   `json:"breaking_changes"`
	RequiresRestart      bool   `json:"requires_restart"`
}

type Compatibility struct {
	Status   string               `json:"status"`
	Checks   []CompatibilityCheck `json:"checks"`
	Warnings []string             `json:"warnings"`
}

type CompatibilityCheck struct {
	Item     string `json:"item"`
	Required string `json:"required"`
	Found    string `json:"found"`
	Status   string `json:"status"`
}

type NextSteps struct {
	Message       string        `json:"message"`
	RequiredInput RequiredInput `json:"required_input"`
	Actions       []Action      `json:"actions"`
}

type RequiredInput struct {
	Type    string `json:"type"`
	Format  string `json:"format"`
	Example string `json:"example"`
}

type Action struct {
	Label         string `json:"label"`
	Action        string `json:"action"`
	RequiresInput bool   `json:"requires_input"`
}

// Summarize builds the summary for p. ttl is reported as expires_in.
func Summarize(p *domain.Plan, ttl time.Duration) Summary {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Summary{
		PlanID:          p.ID,
		Capability:      p.Capability,
		Status:          StatusReadyForInput,
		PlanStatus:      string(p.Status),
		ProjectAnalysis: analysisOf(p.Project),
		ProposedChanges: proposedChanges(p.Project),
		Options:         planOptions(p.Options),
		Impact: Impact{
			FilesCreated:         "~15-20 per table",
			FilesModified:        2,
			EstimatedLinesOfCode: "~300-500 per table",
			RequiresRestart:      true,
		},
		Compatibility: compatibilityOf(p.Project),
		NextSteps:     nextSteps(),
		ExpiresIn:     fmt.Sprintf("%d minutes", int(ttl.Minutes())),
		Created:       p.CreatedAt,
		ExpiresAt:     p.ExpiresAt,
	}
}

func analysisOf(d domain.ProjectDescriptor) ProjectAnalysis {
	deps := make([]string, 0, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		deps = append(deps, dep.ArtifactID)
	}
	return ProjectAnalysis{
		DetectedFramework: strings.TrimSpace(d.Framework + " " + d.FrameworkVersion),
		Language:          strings.TrimSpace(d.Language + " " + d.LanguageVersion),
		BuildTool:         d.BuildTool,
		BasePackage:       d.BasePackage,
		ExistingStructure: ExistingStructure{
			HasJPA:              d.Feature("jpa", false),
			HasDatabase:         d.Feature("database", false),
			HasLombok:           d.Feature("lombok", false),
			HasValidation:       d.Feature("validation", false),
			CurrentDependencies: deps,
		},
	}
}

func proposedChanges(d domain.ProjectDescriptor) ProposedChanges {
	return ProposedChanges{
		Summary: "Add PostgreSQL database integration with JPA repositories and REST controllers",
		Components: []Component{
			{
				Type:        "dependencies",
				Description: "Maven dependencies to be added",
				Items: []ComponentItem{
					{Name: "spring-boot-starter-data-jpa", Purpose: "JPA and Hibernate support", Required: true, Selected: true},
					{Name: "postgresql", Purpose: "PostgreSQL JDBC driver", Required: true, Selected: true},
					{Name: "spring-boot-starter-validation", Purpose: "Bean validation support", Selected: true},
				},
			},
			{
				Type:        "code_generation",
				Description: "Code components to be generated",
				Items: []ComponentItem{
					{Component: "Entity Classes", Description: "JPA entities with annotations", Features: []string{"Lombok", "Validation", "Auditing"}, Location: d.Package(domain.RoleEntity)},
					{Component: "Repository Interfaces", Description: "Spring Data JPA repositories", Features: []string{"CRUD operations", "Custom queries", "Pagination"}, Location: d.Package(domain.RoleRepository)},
					{Component: "Service Layer", Description: "Business logic services", Features: []string{"Transaction management", "Error handling"}, Location: d.Package(domain.RoleService)},
					{Component: "REST Controllers", Description: "RESTful API endpoints", Features: []string{"CRUD endpoints", "Validation", "Error responses"}, Location: d.Package(domain.RoleController)},
				},
			},
		},
	}
}

func planOptions(current map[string]any) PlanOptions {
	if current == nil {
		current = map[string]any{}
	}
	return PlanOptions{
		Current: current,
		Customizable: []CustomOption{
			{ID: OptionNamingStrategy, Label: "Table Naming Strategy", Type: "select", Options: []string{"snake_case", "camelCase", "PascalCase"}, Default: DefaultNamingStrategy},
			{ID: OptionIDGeneration, Label: "ID Generation Strategy", Type: "select", Options: []string{"IDENTITY", "SEQUENCE", "UUID", "AUTO"}, Default: DefaultIDGeneration},
			{ID: OptionAuditFields, Label: "Include Audit Fields", Type: "boolean", Default: DefaultAuditFields, Description: "Add createdAt and updatedAt timestamps"},
		},
	}
}

func compatibilityOf(d domain.ProjectDescriptor) Compatibility {
	c := Compatibility{Status: "compatible", Warnings: []string{}}
	checks := []struct {
		item, found, min string
		normalize        func(string) string
	}{
		{"Spring Boot Version", d.FrameworkVersion, minFrameworkVersion, frameworkSemver},
		{"Java Version", d.LanguageVersion, minLanguageVersion, languageSemver},
	}
	for _, ch := range checks {
		status := "pass"
		found := ch.normalize(ch.found)
		switch {
		case !semver.IsValid(found):
			status = "unknown"
			c.Warnings = append(c.Warnings, fmt.Sprintf("could not parse %s %q", ch.item, ch.found))
		case semver.Compare(found, ch.normalize(ch.min)) < 0:
			status = "fail"
			c.Status = "incompatible"
		}
		c.Checks = append(c.Checks, CompatibilityCheck{
			Item:     ch.item,
			Required: ">= " + ch.min,
			Found:    ch.found,
			Status:   status,
		})
	}
	return c
}

// frameworkSemver turns "3.2.0" or "2.7.18.RELEASE" into a semver string.
func frameworkSemver(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, ".RELEASE")
	if v == "" {
		return ""
	}
	return "v" + v
}

// languageSemver maps Java release names onto semver: "1.8" is 8, "17" is 17.
func languageSemver(v string) string {
	v = strings.TrimSpace(v)
	if rest, ok := strings.CutPrefix(v, "1."); ok && rest != "" {
		v = rest
	}
	if v == "" {
		return ""
	}
	return "v" + v
}

func nextSteps() NextSteps {
	return NextSteps{
		Message: "Review the plan above. When ready, provide your database schema to proceed with generation.",
		RequiredInput: RequiredInput{
			Type:    "database_schema",
			Format:  "Table definitions with fields and relationships",
			Example: "Users table with id, username, email, password fields",
		},
		Actions: []Action{
			{Label: "Proceed with Schema", Action: "execute_plan", RequiresInput: true},
			{Label: "Modify Options", Action: "update_plan"},
		},
	}
}
