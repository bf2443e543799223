package genlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error codes returned in the API error envelope.
const (
	CodePlanNotFound      = "plan_not_found"
	CodePlanExpired       = "plan_expired"
	CodeInvalidRequest    = "invalid_request"
	CodeGenerationFailure = "generation_failure"
)

// Client is a minimal genline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	RequestID   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  30 * time.Second,
	}
}

// Schema is the execution input.
type Schema struct {
	Tables        []Table        `json:"tables" yaml:"tables"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

type Table struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
	Module string  `json:"module,omitempty" yaml:"module,omitempty"`
}

type Field struct {
	Name          string      `json:"name" yaml:"name"`
	Type          string      `json:"type" yaml:"type"`
	Length        *int        `json:"length,omitempty" yaml:"length,omitempty"`
	Precision     *int        `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale         *int        `json:"scale,omitempty" yaml:"scale,omitempty"`
	PrimaryKey    bool        `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	AutoIncrement bool        `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Nullable      *bool       `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique        bool        `json:"unique,omitempty" yaml:"unique,omitempty"`
	DefaultValue  any         `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	EnumValues    []string    `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	ForeignKey    *ForeignKey `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`
}

type ForeignKey struct {
	Table    string `json:"table" yaml:"table"`
	Column   string `json:"column" yaml:"column"`
	OnDelete string `json:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate string `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}

type Relationship struct {
	Type     string `json:"type" yaml:"type"`
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	MappedBy string `json:"mapped_by,omitempty" yaml:"mapped_by,omitempty"`
}

// CreatePlanRequest is the input to CreatePlan and QuickSetup.
type CreatePlanRequest struct {
	Capability  string         `json:"capability"`
	ProjectPath string         `json:"project_path,omitempty"`
	Description string         `json:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// PlanSummary represents the plan summary model (partial).
type PlanSummary struct {
	PlanID          string `json:"plan_id"`
	Capability      string `json:"capability"`
	Status          string `json:"status"`
	PlanStatus      string `json:"plan_status"`
	ProjectAnalysis struct {
		DetectedFramework string `json:"detected_framework"`
		Language          string `json:"language"`
		BuildTool         string `json:"build_tool"`
		BasePackage       string `json:"base_package"`
	} `json:"project_analysis"`
	Options struct {
		Current map[string]any `json:"current"`
	} `json:"options"`
	Compatibility struct {
		Status   string   `json:"status"`
		Warnings []string `json:"warnings"`
	} `json:"compatibility"`
	ExpiresIn string    `json:"expires_in"`
	Created   time.Time `json:"created"`
	ExpiresAt time.Time `json:"expires_at"`
}

type GeneratedFile struct {
	Path    string `json:"path"`
	Action  string `json:"action"`
	Content string `json:"content"`
	Size    int    `json:"size"`
	Changes *struct {
		Added []string `json:"added"`
	} `json:"changes,omitempty"`
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

// ExecutionResult represents the execution model (partial).
type ExecutionResult struct {
	ExecutionID        string              `json:"execution_id"`
	PlanID             string              `json:"plan_id"`
	Status             string              `json:"status"`
	Summary            ExecutionSummary    `json:"summary"`
	GeneratedFiles     []FileCategory      `json:"generated_files"`
	PostExecutionSteps []PostExecutionStep `json:"post_execution_steps"`
	Metadata           struct {
		ExecutionTime    string `json:"execution_time"`
		GeneratorVersion string `json:"generator_version"`
		StandardsVersion string `json:"standards_version"`
	} `json:"metadata"`
}

type QuickSetupResult struct {
	Plan      PlanSummary      `json:"plan"`
	Execution *ExecutionResult `json:"execution"`
}

type Capabilities struct {
	Server              string          `json:"server"`
	Version             string          `json:"version"`
	Capabilities        []string        `json:"capabilities"`
	SupportedFrameworks []string        `json:"supported_frameworks"`
	SupportedLanguages  []string        `json:"supported_languages"`
	SupportedDatabases  []string        `json:"supported_databases"`
	Features            map[string]bool `json:"features"`
	Templates           []string        `json:"templates"`
}

type Health struct {
	Status     string    `json:"status"`
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	ServerTime time.Time `json:"server_time"`
}

// APIError wraps non-2xx responses. Code and Message are filled when the
// body carries the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// LivePlanIDs returns the ids a not-found error reported.
func (e *APIError) LivePlanIDs() []string {
	raw, _ := e.Details["live_plan_ids"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// IsNotFound reports whether err is a plan_not_found API error.
func IsNotFound(err error) bool { return hasCode(err, CodePlanNotFound) }

// IsExpired reports whether err is a plan_expired API error.
func IsExpired(err error) bool { return hasCode(err, CodePlanExpired) }

func hasCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var resp Health
	err := c.do(ctx, http.MethodGet, "health", nil, &resp)
	return resp, err
}

func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	var resp Capabilities
	err := c.do(ctx, http.MethodGet, "capabilities", nil, &resp)
	return resp, err
}

// CreatePlan analyzes the project and creates a plan.
func (c *Client) CreatePlan(ctx context.Context, req CreatePlanRequest) (PlanSummary, error) {
	var resp PlanSummary
	err := c.do(ctx, http.MethodPost, "plans", req, &resp)
	return resp, err
}

// GetPlan resolves a plan by id or alias.
func (c *Client) GetPlan(ctx context.Context, planID string) (PlanSummary, error) {
	var resp PlanSummary
	err := c.do(ctx, http.MethodGet, planPath(planID), nil, &resp)
	return resp, err
}

// UpdatePlan replaces the plan options. A nil map only refreshes expiry.
func (c *Client) UpdatePlan(ctx context.Context, planID string, options map[string]any) (PlanSummary, error) {
	body := map[string]any{}
	if options != nil {
		body["options"] = options
	}
	var resp PlanSummary
	err := c.do(ctx, http.MethodPatch, planPath(planID), body, &resp)
	return resp, err
}

// DeletePlan removes a plan and all of its aliases.
func (c *Client) DeletePlan(ctx context.Context, planID string) error {
	return c.do(ctx, http.MethodDelete, planPath(planID), nil, nil)
}

// ListPlans returns every live plan id and alias.
func (c *Client) ListPlans(ctx context.Context) ([]string, error) {
	var resp struct {
		PlanIDs []string `json:"plan_ids"`
	}
	err := c.do(ctx, http.MethodGet, "plans", nil, &resp)
	return resp.PlanIDs, err
}

// Execute generates artifacts for schema under planID.
func (c *Client) Execute(ctx context.Context, planID string, schema Schema) (ExecutionResult, error) {
	var resp ExecutionResult
	err := c.do(ctx, http.MethodPost, planPath(planID)+"/execute", map[string]any{"schema": schema}, &resp)
	return resp, err
}

// QuickSetup creates a plan and executes it in one round trip.
func (c *Client) QuickSetup(ctx context.Context, req CreatePlanRequest, schema Schema) (QuickSetupResult, error) {
	body := struct {
		CreatePlanRequest
		Schema Schema `json:"schema"`
	}{req, schema}
	var resp QuickSetupResult
	err := c.do(ctx, http.MethodPost, "quick-setup", body, &resp)
	return resp, err
}

// ClearCache drops the server's parsed templates, returning how many were held.
func (c *Client) ClearCache(ctx context.Context) (int, error) {
	var resp struct {
		Cleared int `json:"cleared"`
	}
	err := c.do(ctx, http.MethodPost, "cache/clear", nil, &resp)
	return resp.Cleared, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	if c.RequestID != "" {
		req.Header.Set("X-Adapter-Request-ID", c.RequestID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	ae := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		ae.Code = env.Error.Code
		ae.Message = env.Error.Message
		ae.Details = env.Error.Details
	}
	return ae
}

func planPath(id string) string {
	return "plans/" + url.PathEscape(id)
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath == "" {
		return base
	}
	return base + "/" + strings.Trim(c.BasePath, "/")
}
