// Package generate executes a resolved plan against a schema and assembles
// the categorized set of generated artifacts.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"genline/internal/domain"
	"genline/internal/events"
	"genline/internal/plan"
	"genline/internal/render"
	"genline/internal/typemap"
)

const (
	StatusSuccess = "success"

	DefaultGeneratorVersion = "1.0.0"
	DefaultStandardsVersion = "1.0.0"
)

// PlanResolver is the slice of the plan manager execution needs.
type PlanResolver interface {
	Resolve(ctx context.Context, id string) (*domain.Plan, error)
}

// Orchestrator runs executions. Tables are generated concurrently up to
// Parallelism; output order always follows the schema.
type Orchestrator struct {
	Plans       PlanResolver
	Renderer    render.Renderer
	Types       *typemap.Mapper
	Validator   Validator
	Events      events.Recorder
	Logger      *slog.Logger
	Parallelism int

	GeneratorVersion string
	StandardsVersion string

	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Orchestrator) validator() Validator {
	if o.Validator == nil {
		return NoopValidator{}
	}
	return o.Validator
}

func (o *Orchestrator) record(ctx context.Context, evtType, id string, payload events.EventPayload) {
	if o.Events == nil {
		return
	}
	if err := o.Events.Record(ctx, evtType, events.KindExecution, id, payload); err != nil {
		o.logger().WarnContext(ctx, "record event", "event", evtType, "execution_id", id, "err", err)
	}
}

// Execute resolves planID and generates every artifact for schema. Any
// table failure aborts the whole execution; no partial result is returned.
func (o *Orchestrator) Execute(ctx context.Context, planID string, schema *domain.Schema) (*domain.ExecutionResult, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	p, err := o.Plans.Resolve(ctx, planID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	execID := newExecutionID(o.now())
	log := o.logger().With("execution_id", execID, "plan_id", p.ID)
	log.InfoContext(ctx, "execution started", "tables", len(schema.Tables))

	categories, err := o.generate(ctx, p, schema)
	if err != nil {
		log.ErrorContext(ctx, "execution failed", "err", err)
		o.record(ctx, events.ExecutionFailed, execID, events.EventPayload{"plan_id": p.ID, "error": err.Error()})
		return nil, err
	}

	res := &domain.ExecutionResult{
		ExecutionID:        execID,
		PlanID:             planID,
		Status:             StatusSuccess,
		GeneratedFiles:     categories,
		PostExecutionSteps: postExecutionSteps(),
	}
	res.Summary = summarize(len(schema.Tables), categories)
	res.Validation = o.validator().Validate(ctx, res.Files())

	elapsed := time.Since(start)
	res.Metadata = domain.ExecutionMetadata{
		ExecutionTime:    fmt.Sprintf("%d ms", elapsed.Milliseconds()),
		ElapsedMillis:    elapsed.Milliseconds(),
		GeneratorVersion: orDefault(o.GeneratorVersion, DefaultGeneratorVersion),
		StandardsVersion: orDefault(o.StandardsVersion, DefaultStandardsVersion),
		CompletedAt:      o.now(),
	}
	log.InfoContext(ctx, "execution completed",
		"files", res.Summary.FilesGenerated,
		"lines", res.Summary.TotalLinesOfCode,
		"elapsed_ms", res.Metadata.ElapsedMillis,
	)
	o.record(ctx, events.ExecutionCompleted, execID, events.EventPayload{
		"plan_id":          p.ID,
		"tables_processed": res.Summary.TablesProcessed,
		"files_generated":  res.Summary.FilesGenerated,
	})
	return res, nil
}

// generate fans tables out over a bounded group. Each table writes only its
// own slot, so joining the slots restores schema order.
func (o *Orchestrator) generate(ctx context.Context, p *domain.Plan, schema *domain.Schema) ([]domain.FileCategory, error) {
	opts := optionsFrom(p.Options, o.logger())
	types := o.Types
	if types == nil {
		types = typemap.New(o.logger())
	}

	// an execution always runs to completion or failure
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(max(o.Parallelism, 1))
	slots := make([][]domain.FileCategory, len(schema.Tables))
	for i, table := range schema.Tables {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			tg := &tableGen{
				table:    table,
				project:  p.Project.Clone(),
				opts:     opts,
				types:    types,
				renderer: o.Renderer,
			}
			cats, err := tg.run()
			if err != nil {
				return plan.GenerationFailed(err, "generate table %s", table.Name)
			}
			slots[i] = cats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.FileCategory, 0, len(schema.Tables)*4+1)
	for _, cats := range slots {
		out = append(out, cats...)
	}
	cfg, err := configuration(p.Project.Clone(), o.Renderer)
	if err != nil {
		return nil, plan.GenerationFailed(err, "generate configuration")
	}
	return append(out, cfg), nil
}

func validateSchema(schema *domain.Schema) error {
	if schema == nil || len(schema.Tables) == 0 {
		return plan.Invalid("schema with at least one table is required")
	}
	for i, t := range schema.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return plan.Invalid("schema.tables[%d].name is required", i)
		}
		for j, f := range t.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return plan.Invalid("schema.tables[%d].fields[%d].name is required", i, j)
			}
		}
	}
	return nil
}

func summarize(tables int, categories []domain.FileCategory) domain.ExecutionSummary {
	s := domain.ExecutionSummary{
		TablesProcessed:   tables,
		FilesModified:     2,
		DependenciesAdded: dependenciesAdded,
	}
	for _, c := range categories {
		s.FilesGenerated += len(c.Files)
		for _, f := range c.Files {
			s.TotalLinesOfCode += f.Size
		}
	}
	return s
}

func postExecutionSteps() []domain.PostExecutionStep {
	return []domain.PostExecutionStep{
		{Step: 1, Action: "Update database connection", Description: "Configure your PostgreSQL connection in application.yml", Required: true},
		{Step: 2, Action: "Run database migrations", Description: "Create database schema using provided scripts or let Hibernate auto-create", Required: true},
		{Step: 3, Action: "Restart application", Description: "Restart Spring Boot application to load new configurations", Required: true},
	}
}

func newExecutionID(now time.Time) string {
	return fmt.Sprintf("exec_%s_%d", uuid.NewString()[:8], now.UnixMilli())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
