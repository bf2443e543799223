package server

import (
	"time"

	"genline/internal/domain"
	"genline/internal/plan"
)

// Request payloads

type CreatePlanRequest struct {
	Capability  string         `json:"capability" minLength:"1" example:"database-integration"`
	ProjectPath string         `json:"project_path,omitempty" example:"./my-service"`
	Description string         `json:"description,omitempty" example:"user management tables"`
	Options     map[string]any `json:"options,omitempty"`
}

// UpdatePlanRequest replaces the plan options when Options is present.
type UpdatePlanRequest struct {
	Options map[string]any `json:"options,omitempty"`
}

type ExecutePlanRequest struct {
	Schema domain.Schema `json:"schema"`
}

type QuickSetupRequest struct {
	Capability  string         `json:"capability" minLength:"1"`
	ProjectPath string         `json:"project_path,omitempty"`
	Description string         `json:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
	Schema      domain.Schema  `json:"schema"`
}

// Response payloads

type HealthResponse struct {
	Status     string    `json:"status" example:"ok"`
	Service    string    `json:"service" example:"genline"`
	Version    string    `json:"version"`
	ServerTime time.Time `json:"server_time"`
}

type CapabilitiesResponse struct {
	Server              string          `json:"server"`
	Version             string          `json:"version"`
	Capabilities        []string        `json:"capabilities"`
	SupportedFrameworks []string        `json:"supported_frameworks"`
	SupportedLanguages  []string        `json:"supported_languages"`
	SupportedDatabases  []string        `json:"supported_databases"`
	Features            map[string]bool `json:"features"`
	Templates           []string        `json:"templates"`
}

type PlanListResponse struct {
	PlanIDs []string `json:"plan_ids"`
	Count   int      `json:"count"`
}

type DeletePlanResponse struct {
	PlanID  string `json:"plan_id"`
	Deleted bool   `json:"deleted"`
}

type QuickSetupResponse struct {
	Plan      plan.Summary            `json:"plan"`
	Execution *domain.ExecutionResult `json:"execution"`
}

type CacheClearResponse struct {
	Cleared int `json:"cleared"`
}

func createRequest(capability, projectPath, description string, options map[string]any) plan.CreateRequest {
	return plan.CreateRequest{
		Capability:  capability,
		ProjectPath: projectPath,
		Description: description,
		Options:     options,
	}
}
