package domain

import (
	"maps"
	"slices"
	"time"
)

type PlanStatus string

const (
	PlanCreated   PlanStatus = "created"
	PlanUpdated   PlanStatus = "updated"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanExpired   PlanStatus = "expired"
	PlanError     PlanStatus = "error"
)

// Package roles of a ProjectDescriptor.
const (
	RoleEntity     = "entity"
	RoleRepository = "repository"
	RoleService    = "service"
	RoleController = "controller"
	RoleDTO        = "dto"
	RoleConfig     = "config"
)

// PackageRoles lists every role in a stable order.
var PackageRoles = []string{RoleEntity, RoleRepository, RoleService, RoleController, RoleDTO, RoleConfig}

type Dependency struct {
	GroupID    string `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	ArtifactID string `json:"artifact_id" yaml:"artifact_id"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	Scope      string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

type ProjectDescriptor struct {
	Path             string            `json:"path,omitempty"`
	Language         string            `json:"language"`
	LanguageVersion  string            `json:"language_version"`
	Framework        string            `json:"framework"`
	FrameworkVersion string            `json:"framework_version"`
	BuildTool        string            `json:"build_tool" enum:"maven,gradle,unknown"`
	BuildFile        string            `json:"build_file,omitempty"`
	BasePackage      string            `json:"base_package"`
	Packages         map[string]string `json:"packages,omitempty"`
	Dependencies     []Dependency      `json:"dependencies,omitempty"`
	Features         map[string]bool   `json:"features,omitempty"`
}

// Clone returns a copy that shares no mutable state with d.
func (d ProjectDescriptor) Clone() ProjectDescriptor {
	out := d
	out.Packages = maps.Clone(d.Packages)
	out.Dependencies = slices.Clone(d.Dependencies)
	out.Features = maps.Clone(d.Features)
	return out
}

// Package returns the package for a role, defaulting to <base>.<role>.
func (d ProjectDescriptor) Package(role string) string {
	if p := d.Packages[role]; p != "" {
		return p
	}
	if d.BasePackage == "" {
		return role
	}
	return d.BasePackage + "." + role
}

// Feature reports a detected feature flag, or def when it was never detected.
func (d ProjectDescriptor) Feature(name string, def bool) bool {
	if v, ok := d.Features[name]; ok {
		return v
	}
	return def
}

// HasDependency reports whether an artifact id is declared by the project.
func (d ProjectDescriptor) HasDependency(artifactID string) bool {
	for _, dep := range d.Dependencies {
		if dep.ArtifactID == artifactID {
			return true
		}
	}
	return false
}

type Plan struct {
	ID          string            `json:"id"`
	Capability  string            `json:"capability"`
	Description string            `json:"description,omitempty"`
	Project     ProjectDescriptor `json:"project"`
	Options     map[string]any    `json:"options,omitempty"`
	Status      PlanStatus        `json:"status" enum:"created,updated,executing,completed,expired,error"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Clone deep-copies the plan so callers never share the stored record.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.Project = p.Project.Clone()
	out.Options = cloneOptions(p.Options)
	return &out
}

// Expired reports whether the plan is past its expiration at now.
func (p *Plan) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

func cloneOptions(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneOptions(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

type Event struct {
	ID         int64          `json:"id"`
	TS         time.Time      `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}
