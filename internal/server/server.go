package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"genline/internal/domain"
	"genline/internal/plan"
)

const (
	serviceName = "genline"

	// RequestIDHeader correlates a request across logs and responses.
	RequestIDHeader = "X-Adapter-Request-ID"
)

// Plans is the lifecycle surface the API exposes.
type Plans interface {
	Create(ctx context.Context, req plan.CreateRequest) (*domain.Plan, error)
	Resolve(ctx context.Context, id string) (*domain.Plan, error)
	Update(ctx context.Context, id string, patch plan.Patch) (*domain.Plan, error)
	Delete(ctx context.Context, id string) (bool, error)
	LiveIDs(ctx context.Context) ([]string, error)
}

type Executor interface {
	Execute(ctx context.Context, planID string, schema *domain.Schema) (*domain.ExecutionResult, error)
}

// Templates is the renderer cache surface.
type Templates interface {
	ClearCache() int
	Available() []string
}

// Config for the HTTP API handler.
type Config struct {
	Plans     Plans
	Executor  Executor
	Templates Templates
	// PlanTTL is reported in plan summaries.
	PlanTTL  time.Duration
	BasePath string
	Version  string
	Auth     AuthConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"plan_not_found"`
	Message string         `json:"message" example:"Plan not found: plan_123. Please create a new plan."`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"hint\":\"create a new plan\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type api struct {
	cfg Config
}

// New returns an HTTP handler exposing the genline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Plans == nil || cfg.Executor == nil {
		return nil, errors.New("server: plans and executor are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = plan.DefaultTTL
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	cfg.BasePath = basePath

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// request validation failures surface as plain bad requests
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return huma.NewError(status, msg, errs...)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Logger))
	hcfg := huma.DefaultConfig("genline API", cfg.Version)
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	humaAPI := humachi.New(router, hcfg)
	group := huma.NewGroup(humaAPI, basePath)

	a := &api{cfg: cfg}
	registerDocs(router, basePath)
	a.registerHealth(group)
	a.registerCapabilities(group)
	a.registerPlans(group)
	a.registerExecute(group)
	a.registerQuickSetup(group)
	a.registerCache(group)
	registerOpenAPI(router, humaAPI, basePath, cfg.Auth.enabled())

	return router, nil
}

// requestLogger logs one line per request and echoes the correlation id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var pe *plan.Error
	if !errors.As(err, &pe) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
	details := map[string]any{}
	if pe.Hint != "" {
		details["hint"] = pe.Hint
	}
	switch pe.Kind {
	case plan.KindNotFound:
		live := pe.LiveIDs
		if live == nil {
			live = []string{}
		}
		details["live_plan_ids"] = live
		return newAPIError(http.StatusNotFound, string(pe.Kind), pe.Error(), details)
	case plan.KindExpired:
		return newAPIError(http.StatusGone, string(pe.Kind), pe.Error(), details)
	case plan.KindInvalidRequest:
		return newAPIError(http.StatusBadRequest, string(pe.Kind), pe.Error(), nil)
	default:
		if pe.Cause != nil {
			details["cause"] = pe.Cause.Error()
		}
		return newAPIError(http.StatusInternalServerError, string(plan.KindGenerationFailure), pe.Message, details)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(plan.KindInvalidRequest)
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string, secured bool) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		// Built on first fetch so every operation is registered by then.
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			if secured {
				applyAuthSecurity(oas, basePath)
			}
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace}
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	public := publicPaths(basePath)
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>genline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func (a *api) registerHealth(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{
			Status:     "ok",
			Service:    serviceName,
			Version:    a.cfg.Version,
			ServerTime: time.Now().UTC(),
		}}, nil
	})
}

func (a *api) registerCapabilities(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "capabilities",
		Method:      http.MethodGet,
		Path:        "/capabilities",
		Summary:     "Describe generation capabilities",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CapabilitiesResponse `json:"body"`
	}, error) {
		resp := CapabilitiesResponse{
			Server:              serviceName,
			Version:             a.cfg.Version,
			Capabilities:        []string{"postgresql", "database-integration", "code-generation"},
			SupportedFrameworks: []string{"spring-boot"},
			SupportedLanguages:  []string{"java"},
			SupportedDatabases:  []string{"postgresql"},
			Features: map[string]bool{
				"plan_aliases":        true,
				"plan_expiration":     true,
				"enum_generation":     true,
				"module_isolation":    true,
				"compilation_checks":  false,
				"template_overrides":  true,
				"parallel_generation": true,
			},
			Templates: []string{},
		}
		if a.cfg.Templates != nil {
			resp.Templates = a.cfg.Templates.Available()
		}
		return &struct {
			Body CapabilitiesResponse `json:"body"`
		}{Body: resp}, nil
	})
}

type planPath struct {
	PlanID string `path:"plan_id"`
}

var planErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusGone,
	http.StatusInternalServerError,
}

func (a *api) registerPlans(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          "/plans",
		Summary:       "Analyze a project and create a plan",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreatePlanRequest `json:"body"`
	}) (*struct {
		Body plan.Summary `json:"body"`
	}, error) {
		b := input.Body
		p, err := a.cfg.Plans.Create(ctx, createRequest(b.Capability, b.ProjectPath, b.Description, b.Options))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body plan.Summary `json:"body"`
		}{Body: plan.Summarize(p, a.cfg.PlanTTL)}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/plans",
		Summary:     "List live plan ids and aliases",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PlanListResponse `json:"body"`
	}, error) {
		ids, err := a.cfg.Plans.LiveIDs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if ids == nil {
			ids = []string{}
		}
		return &struct {
			Body PlanListResponse `json:"body"`
		}{Body: PlanListResponse{PlanIDs: ids, Count: len(ids)}}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}",
		Summary:     "Resolve a plan by id or alias",
		Errors:      planErrors,
	}, func(ctx context.Context, input *planPath) (*struct {
		Body plan.Summary `json:"body"`
	}, error) {
		p, err := a.cfg.Plans.Resolve(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body plan.Summary `json:"body"`
		}{Body: plan.Summarize(p, a.cfg.PlanTTL)}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "update-plan",
		Method:      http.MethodPatch,
		Path:        "/plans/{plan_id}",
		Summary:     "Replace plan options and refresh its expiry",
		Errors:      planErrors,
	}, func(ctx context.Context, input *struct {
		PlanID string            `path:"plan_id"`
		Body   UpdatePlanRequest `json:"body"`
	}) (*struct {
		Body plan.Summary `json:"body"`
	}, error) {
		p, err := a.cfg.Plans.Update(ctx, input.PlanID, plan.Patch{Options: input.Body.Options})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body plan.Summary `json:"body"`
		}{Body: plan.Summarize(p, a.cfg.PlanTTL)}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "delete-plan",
		Method:      http.MethodDelete,
		Path:        "/plans/{plan_id}",
		Summary:     "Delete a plan and every alias",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body DeletePlanResponse `json:"body"`
	}, error) {
		removed, err := a.cfg.Plans.Delete(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		if !removed {
			return nil, newAPIError(http.StatusNotFound, string(plan.KindNotFound),
				fmt.Sprintf("Plan not found: %s", input.PlanID), map[string]any{"hint": plan.HintCreateNew})
		}
		return &struct {
			Body DeletePlanResponse `json:"body"`
		}{Body: DeletePlanResponse{PlanID: input.PlanID, Deleted: true}}, nil
	})
}

func (a *api) registerExecute(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "execute-plan",
		Method:      http.MethodPost,
		Path:        "/plans/{plan_id}/execute",
		Summary:     "Generate artifacts for a schema",
		Errors:      planErrors,
	}, func(ctx context.Context, input *struct {
		PlanID string             `path:"plan_id"`
		Body   ExecutePlanRequest `json:"body"`
	}) (*struct {
		Body *domain.ExecutionResult `json:"body"`
	}, error) {
		res, err := a.cfg.Executor.Execute(ctx, input.PlanID, &input.Body.Schema)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *domain.ExecutionResult `json:"body"`
		}{Body: res}, nil
	})
}

func (a *api) registerQuickSetup(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "quick-setup",
		Method:      http.MethodPost,
		Path:        "/quick-setup",
		Summary:     "Create a plan and execute it in one call",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body QuickSetupRequest `json:"body"`
	}) (*struct {
		Body QuickSetupResponse `json:"body"`
	}, error) {
		b := input.Body
		p, err := a.cfg.Plans.Create(ctx, createRequest(b.Capability, b.ProjectPath, b.Description, b.Options))
		if err != nil {
			return nil, handleError(err)
		}
		res, err := a.cfg.Executor.Execute(ctx, p.ID, &b.Schema)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QuickSetupResponse `json:"body"`
		}{Body: QuickSetupResponse{Plan: plan.Summarize(p, a.cfg.PlanTTL), Execution: res}}, nil
	})
}

func (a *api) registerCache(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "clear-cache",
		Method:      http.MethodPost,
		Path:        "/cache/clear",
		Summary:     "Drop parsed templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CacheClearResponse `json:"body"`
	}, error) {
		n := 0
		if a.cfg.Templates != nil {
			n = a.cfg.Templates.ClearCache()
		}
		return &struct {
			Body CacheClearResponse `json:"body"`
		}{Body: CacheClearResponse{Cleared: n}}, nil
	})
}
