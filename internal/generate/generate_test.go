package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genline/internal/domain"
	"genline/internal/events"
	"genline/internal/logging"
	"genline/internal/plan"
	"genline/internal/render"
	"genline/internal/typemap"
)

type fixedPlans struct {
	plan  *domain.Plan
	calls atomic.Int32
}

func (f *fixedPlans) Resolve(_ context.Context, id string) (*domain.Plan, error) {
	f.calls.Add(1)
	if id != f.plan.ID {
		return nil, fmt.Errorf("resolve %s: %w", id, plan.ErrNotFound)
	}
	return f.plan.Clone(), nil
}

// failingRenderer fails every template rendered for one class.
type failingRenderer struct {
	render.Renderer
	class string
}

func (r failingRenderer) Render(id string, vars map[string]any) (string, error) {
	if vars["entityClass"] == r.class || vars["className"] == r.class {
		return "", errors.New("template exploded")
	}
	return r.Renderer.Render(id, vars)
}

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (e *eventLog) Record(_ context.Context, evtType, _, _ string, _ events.EventPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, evtType)
	return nil
}

func newPlan() *domain.Plan {
	return &domain.Plan{
		ID:         "plan_1",
		Capability: "postgresql",
		Status:     domain.PlanCreated,
		Options:    map[string]any{},
		Project: domain.ProjectDescriptor{
			Language:         "Java",
			LanguageVersion:  "17",
			Framework:        "Spring Boot",
			FrameworkVersion: "3.2.0",
			BuildTool:        "maven",
			BasePackage:      "com.example",
			Packages:         map[string]string{domain.RoleEntity: "com.example.entity"},
			Features:         map[string]bool{"lombok": true, "validation": true},
		},
	}
}

func newOrchestrator(t *testing.T, p *domain.Plan) (*Orchestrator, *fixedPlans, *eventLog) {
	t.Helper()
	r, err := render.New(logging.Discard(), 16)
	require.NoError(t, err)
	plans := &fixedPlans{plan: p}
	evts := &eventLog{}
	return &Orchestrator{
		Plans:            plans,
		Renderer:         r,
		Types:            typemap.New(logging.Discard()),
		Validator:        NoopValidator{},
		Events:           evts,
		Logger:           logging.Discard(),
		Parallelism:      1,
		GeneratorVersion: "1.2.3",
		StandardsVersion: "2024.1",
	}, plans, evts
}

func intPtr(v int) *int { return &v }

func userProfileSchema() *domain.Schema {
	return &domain.Schema{Tables: []domain.Table{{
		Name: "user_profile",
		Fields: []domain.Field{
			{Name: "id", Type: "int", PrimaryKey: true},
			{Name: "email", Type: "varchar", Unique: true, Length: intPtr(255)},
			{Name: "status", Type: "varchar", EnumValues: []string{"ACTIVE", "DISABLED"}},
		},
	}}}
}

func categoryNames(res *domain.ExecutionResult) []string {
	var out []string
	for _, c := range res.GeneratedFiles {
		out = append(out, c.Category)
	}
	return out
}

func paths(res *domain.ExecutionResult) []string {
	var out []string
	for _, f := range res.Files() {
		out = append(out, f.Path)
	}
	return out
}

func TestExecuteUserProfile(t *testing.T) {
	o, _, evts := newOrchestrator(t, newPlan())
	res, err := o.Execute(context.Background(), "plan_1", userProfileSchema())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "plan_1", res.PlanID)
	assert.Regexp(t, `^exec_[0-9a-f]{8}_\d+$`, res.ExecutionID)
	assert.Equal(t, []string{
		domain.CategoryEntities, domain.CategoryRepositories, domain.CategoryServices,
		domain.CategoryControllers, domain.CategoryConfiguration,
	}, categoryNames(res))
	assert.Equal(t, []string{
		"src/main/java/com/example/entity/UserProfile.java",
		"src/main/java/com/example/entity/enums/StatusType.java",
		"src/main/java/com/example/repository/UserProfileRepository.java",
		"src/main/java/com/example/service/UserProfileService.java",
		"src/main/java/com/example/controller/UserProfileController.java",
		"src/main/resources/application.yml",
		"pom.xml",
	}, paths(res))

	files := res.Files()
	entity := files[0].Content
	assert.Contains(t, entity, "package com.example.entity;")
	assert.Contains(t, entity, "import com.example.entity.enums.StatusType;")
	assert.Contains(t, entity, `@Table(name = "user_profile")`)
	assert.Contains(t, entity, "public class UserProfile {")
	assert.Contains(t, entity, "    @Id\n    @Column(name = \"id\")\n    private Integer id;")
	assert.Contains(t, entity, `@Column(name = "email", unique = true, length = 255)`)
	assert.Contains(t, entity, "    @Enumerated(EnumType.STRING)\n    @Column(name = \"status\")\n    private StatusType status;")
	assert.Contains(t, entity, "@Data")

	assert.Equal(t, "package com.example.entity.enums;\n\npublic enum StatusType {\n    ACTIVE,\n    DISABLED\n}\n", files[1].Content)

	repo := files[2].Content
	assert.Contains(t, repo, "public interface UserProfileRepository extends JpaRepository<UserProfile, Integer> {")
	assert.Contains(t, repo, "Optional<UserProfile> findByEmail(String email);")
	assert.Contains(t, repo, "import java.util.Optional;")

	svc := files[3].Content
	assert.Contains(t, svc, "import com.example.repository.UserProfileRepository;")
	assert.Contains(t, svc, "private final UserProfileRepository userProfileRepository;")
	assert.Contains(t, svc, "public Optional<UserProfile> findById(Integer id)")

	ctrl := files[4].Content
	assert.Contains(t, ctrl, `@RequestMapping("/api/user_profile")`)
	assert.Contains(t, ctrl, "@PathVariable Integer id")
	assert.Contains(t, ctrl, "@Valid @RequestBody UserProfile body")

	for _, f := range files[:5] {
		assert.Equal(t, domain.ActionCreate, f.Action, f.Path)
		assert.Nil(t, f.Changes, f.Path)
	}
	for _, f := range files[5:] {
		assert.Equal(t, domain.ActionModify, f.Action, f.Path)
		require.NotNil(t, f.Changes, f.Path)
	}
	assert.Len(t, files[5].Changes.Added, 4)
	assert.Equal(t, []string{"spring-boot-starter-data-jpa", "postgresql driver", "validation starter"}, files[6].Changes.Added)

	assert.Equal(t, 1, res.Summary.TablesProcessed)
	assert.Equal(t, 7, res.Summary.FilesGenerated)
	assert.Equal(t, 2, res.Summary.FilesModified)
	assert.Equal(t, 4, res.Summary.DependenciesAdded)

	require.Len(t, res.PostExecutionSteps, 3)
	for i, s := range res.PostExecutionSteps {
		assert.Equal(t, i+1, s.Step)
		assert.True(t, s.Required)
	}
	assert.Equal(t, "passed", res.Validation.CompilationCheck)
	assert.Equal(t, 95, res.Validation.CodeQuality.Score)
	assert.Empty(t, res.Validation.CodeQuality.Issues)

	assert.Equal(t, "1.2.3", res.Metadata.GeneratorVersion)
	assert.Equal(t, "2024.1", res.Metadata.StandardsVersion)
	assert.True(t, strings.HasSuffix(res.Metadata.ExecutionTime, " ms"))
	assert.False(t, res.Metadata.CompletedAt.IsZero())

	assert.Equal(t, []string{events.ExecutionCompleted}, evts.types)
}

func TestExecuteAggregates(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	schema := userProfileSchema()
	schema.Tables = append(schema.Tables, domain.Table{Name: "orders", Fields: []domain.Field{{Name: "total", Type: "decimal(10,2)"}}})

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)

	files, lines := 0, 0
	for _, c := range res.GeneratedFiles {
		files += len(c.Files)
		for _, f := range c.Files {
			assert.Equal(t, countLines(f.Content), f.Size, f.Path)
			lines += f.Size
		}
	}
	assert.Equal(t, 2, res.Summary.TablesProcessed)
	assert.Equal(t, files, res.Summary.FilesGenerated)
	assert.Equal(t, 11, res.Summary.FilesGenerated)
	assert.Equal(t, lines, res.Summary.TotalLinesOfCode)
}

func TestExecuteIsDeterministic(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	o.Parallelism = 4
	schema := userProfileSchema()
	schema.Tables = append(schema.Tables,
		domain.Table{Name: "invoice", Module: "billing", Fields: []domain.Field{{Name: "id", Type: "uuid", PrimaryKey: true}}},
		domain.Table{Name: "tag", Fields: []domain.Field{{Name: "label", Type: "text"}}},
	)

	first, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	second, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)

	assert.NotEqual(t, first.ExecutionID, second.ExecutionID)
	assert.Equal(t, first.GeneratedFiles, second.GeneratedFiles)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestExecutePreservesTableOrderUnderParallelism(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	o.Parallelism = 8
	schema := &domain.Schema{}
	for i := 0; i < 20; i++ {
		schema.Tables = append(schema.Tables, domain.Table{Name: fmt.Sprintf("t%02d", i), Fields: []domain.Field{{Name: "id", Type: "bigint", PrimaryKey: true}}})
	}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	require.Len(t, res.GeneratedFiles, 20*4+1)
	for i := 0; i < 20; i++ {
		class := fmt.Sprintf("T%02d", i)
		assert.Equal(t, fmt.Sprintf("src/main/java/com/example/entity/%s.java", class), res.GeneratedFiles[i*4].Files[0].Path)
		assert.Equal(t, fmt.Sprintf("src/main/java/com/example/controller/%sController.java", class), res.GeneratedFiles[i*4+3].Files[0].Path)
	}
	assert.Equal(t, domain.CategoryConfiguration, res.GeneratedFiles[80].Category)
}

func TestExecuteIsolatesTablesFromEachOther(t *testing.T) {
	p := newPlan()
	o, _, _ := newOrchestrator(t, p)
	o.Parallelism = 2
	schema := &domain.Schema{Tables: []domain.Table{
		{Name: "invoice", Module: "billing", Fields: []domain.Field{{Name: "amount", Type: "numeric"}}},
		{Name: "customer", Fields: []domain.Field{{Name: "name", Type: "varchar"}}},
	}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/main/java/com/example/billing/entity/Invoice.java",
		"src/main/java/com/example/billing/repository/InvoiceRepository.java",
		"src/main/java/com/example/billing/service/InvoiceService.java",
		"src/main/java/com/example/billing/controller/InvoiceController.java",
		"src/main/java/com/example/entity/Customer.java",
		"src/main/java/com/example/repository/CustomerRepository.java",
		"src/main/java/com/example/service/CustomerService.java",
		"src/main/java/com/example/controller/CustomerController.java",
		"src/main/resources/application.yml",
		"pom.xml",
	}, paths(res))
	assert.Contains(t, res.GeneratedFiles[4].Files[0].Content, "package com.example.entity;")
	assert.NotContains(t, res.GeneratedFiles[7].Files[0].Content, "billing")

	// the stored plan is never touched
	assert.Equal(t, map[string]string{domain.RoleEntity: "com.example.entity"}, p.Project.Packages)
}

func TestPrimaryKeyFallback(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	schema := &domain.Schema{Tables: []domain.Table{{Name: "tag", Fields: []domain.Field{{Name: "label", Type: "text"}}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	assert.Contains(t, res.GeneratedFiles[1].Files[0].Content, "JpaRepository<Tag, Long>")
	assert.Contains(t, res.GeneratedFiles[3].Files[0].Content, "@PathVariable Long id")
}

func TestPrimaryKeyUsesFirstKeyColumn(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	schema := &domain.Schema{Tables: []domain.Table{{Name: "session", Fields: []domain.Field{
		{Name: "label", Type: "text"},
		{Name: "token", Type: "uuid", PrimaryKey: true},
		{Name: "seq", Type: "bigint", PrimaryKey: true},
	}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	repo := res.GeneratedFiles[1].Files[0].Content
	assert.Contains(t, repo, "JpaRepository<Session, UUID>")
	assert.Contains(t, repo, "import java.util.UUID;")
}

func TestEnumEmission(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	schema := &domain.Schema{Tables: []domain.Table{{Name: "ticket", Fields: []domain.Field{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "priority", Type: "varchar", EnumValues: []string{"LOW", "HIGH", ""}},
		{Name: "kind", Type: "varchar", EnumValues: []string{}},
		{Name: "state", Type: "varchar", EnumValues: []string{"OPEN"}},
		{Name: "title", Type: "varchar"},
	}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	entityFiles := res.GeneratedFiles[0].Files
	require.Len(t, entityFiles, 3)
	assert.Equal(t, "src/main/java/com/example/entity/enums/PriorityType.java", entityFiles[1].Path)
	assert.Equal(t, "src/main/java/com/example/entity/enums/StateType.java", entityFiles[2].Path)
	assert.Contains(t, entityFiles[1].Content, "    LOW,\n    HIGH\n}")
	assert.Contains(t, entityFiles[0].Content, "private String kind;")
}

func TestBlankEnumValuesKeepMappedType(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	schema := &domain.Schema{Tables: []domain.Table{{Name: "account", Fields: []domain.Field{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "status", Type: "varchar", Unique: true, EnumValues: []string{"", " "}},
	}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	entityFiles := res.GeneratedFiles[0].Files
	require.Len(t, entityFiles, 1)
	assert.Contains(t, entityFiles[0].Content, "private String status;")
	assert.NotContains(t, entityFiles[0].Content, "StatusType")
	assert.Contains(t, res.GeneratedFiles[1].Files[0].Content, "findByStatus(String status)")
}

func TestGradleManifest(t *testing.T) {
	p := newPlan()
	p.Project.BuildTool = "gradle"
	p.Project.BuildFile = "build.gradle.kts"
	o, _, _ := newOrchestrator(t, p)
	schema := &domain.Schema{Tables: []domain.Table{{Name: "note", Fields: []domain.Field{
		{Name: "id", Type: "bigint", PrimaryKey: true},
	}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	cfg := res.GeneratedFiles[4]
	require.Equal(t, domain.CategoryConfiguration, cfg.Category)
	require.Len(t, cfg.Files, 2)
	manifest := cfg.Files[1]
	assert.Equal(t, "build.gradle.kts", manifest.Path)
	assert.Equal(t, domain.ActionModify, manifest.Action)
	assert.Contains(t, manifest.Content, `    implementation("org.springframework.boot:spring-boot-starter-data-jpa")`)
	assert.Contains(t, manifest.Content, `    runtimeOnly("org.postgresql:postgresql")`)
	assert.NotContains(t, manifest.Content, "<dependency>")
}

func TestAdvertisedDefaultsMatchGeneration(t *testing.T) {
	p := newPlan()
	summary := plan.Summarize(p, time.Hour)
	defaults := map[string]any{}
	for _, opt := range summary.Options.Customizable {
		defaults[opt.ID] = opt.Default
	}
	require.Equal(t, true, defaults[OptAuditFields])

	opts := optionsFrom(map[string]any{}, logging.Discard())
	assert.Equal(t, defaults[OptAuditFields], opts.auditFields)
	assert.Equal(t, defaults[OptNamingStrategy], opts.namingStrategy)
	assert.Equal(t, defaults[OptIDGeneration], opts.idGeneration)

	o, _, _ := newOrchestrator(t, p)
	schema := &domain.Schema{Tables: []domain.Table{{Name: "note", Fields: []domain.Field{
		{Name: "id", Type: "bigint", PrimaryKey: true, AutoIncrement: true},
	}}}}
	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	entity := res.GeneratedFiles[0].Files[0].Content
	assert.Contains(t, entity, "private LocalDateTime createdAt;")
	assert.Contains(t, entity, "private LocalDateTime updatedAt;")
	assert.Contains(t, entity, `@Table(name = "note")`)
	assert.Contains(t, entity, "@GeneratedValue(strategy = GenerationType.IDENTITY)")
}

func TestGenerationFailureAbortsExecution(t *testing.T) {
	o, _, evts := newOrchestrator(t, newPlan())
	o.Parallelism = 3
	o.Renderer = failingRenderer{Renderer: o.Renderer, class: "Broken"}
	schema := &domain.Schema{Tables: []domain.Table{
		{Name: "good", Fields: []domain.Field{{Name: "id", Type: "int", PrimaryKey: true}}},
		{Name: "broken", Fields: []domain.Field{{Name: "id", Type: "int", PrimaryKey: true}}},
		{Name: "fine", Fields: []domain.Field{{Name: "id", Type: "int", PrimaryKey: true}}},
	}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, plan.ErrGenerationFailure)
	assert.Contains(t, err.Error(), "generate table broken")
	assert.Contains(t, err.Error(), "template exploded")
	assert.Equal(t, []string{events.ExecutionFailed}, evts.types)
}

func TestExecuteRejectsInvalidSchemaBeforeResolving(t *testing.T) {
	o, plans, _ := newOrchestrator(t, newPlan())
	cases := map[string]*domain.Schema{
		"nil":          nil,
		"no tables":    {},
		"blank table":  {Tables: []domain.Table{{Name: " "}}},
		"blank column": {Tables: []domain.Table{{Name: "t", Fields: []domain.Field{{Type: "int"}}}}},
	}
	for name, schema := range cases {
		_, err := o.Execute(context.Background(), "plan_1", schema)
		assert.ErrorIs(t, err, plan.ErrInvalidRequest, name)
	}
	assert.Zero(t, plans.calls.Load())
}

func TestExecuteUnknownPlan(t *testing.T) {
	o, _, evts := newOrchestrator(t, newPlan())
	_, err := o.Execute(context.Background(), "missing", userProfileSchema())
	assert.ErrorIs(t, err, plan.ErrNotFound)
	assert.Empty(t, evts.types)
}

func TestPlanOptionsShapeEntities(t *testing.T) {
	p := newPlan()
	p.Options = map[string]any{
		OptIDGeneration:   "uuid",
		OptAuditFields:    true,
		OptNamingStrategy: "PascalCase",
	}
	p.Project.Features["lombok"] = false
	o, _, _ := newOrchestrator(t, p)
	schema := &domain.Schema{Tables: []domain.Table{{Name: "user_profile", Fields: []domain.Field{
		{Name: "id", Type: "bigint", PrimaryKey: true, AutoIncrement: true},
		{Name: "active", Type: "boolean", Nullable: new(bool)},
	}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	entity := res.GeneratedFiles[0].Files[0].Content
	assert.Contains(t, entity, `@Table(name = "UserProfile")`)
	assert.Contains(t, entity, "@GeneratedValue(strategy = GenerationType.UUID)")
	assert.Contains(t, entity, "private LocalDateTime createdAt;")
	assert.Contains(t, entity, "import java.time.LocalDateTime;")
	assert.Contains(t, entity, "import org.hibernate.annotations.CreationTimestamp;")
	assert.Contains(t, entity, "    @NotNull\n    @Column(name = \"active\", nullable = false)")
	assert.Contains(t, entity, "public Boolean isActive() {")
	assert.Contains(t, entity, "public void setActive(Boolean active) {")
	assert.NotContains(t, entity, "@Data")
}

func TestReservedTableNameIsQuoted(t *testing.T) {
	o, _, _ := newOrchestrator(t, newPlan())
	schema := &domain.Schema{Tables: []domain.Table{{Name: "user", Fields: []domain.Field{{Name: "id", Type: "int", PrimaryKey: true}}}}}

	res, err := o.Execute(context.Background(), "plan_1", schema)
	require.NoError(t, err)
	assert.Contains(t, res.GeneratedFiles[0].Files[0].Content, `@Table(name = "\"user\"")`)
	assert.Contains(t, res.GeneratedFiles[3].Files[0].Content, `@RequestMapping("/api/user")`)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 0, countLines("\n\n"))
	assert.Equal(t, 1, countLines("a"))
	assert.Equal(t, 1, countLines("a\n"))
	assert.Equal(t, 3, countLines("a\n\nb\n\n"))
}

func TestApplicationYAML(t *testing.T) {
	out, err := applicationYAML(domain.ProjectDescriptor{BasePackage: "com.acme.OrderService"})
	require.NoError(t, err)
	assert.Contains(t, out, "jdbc:postgresql://localhost:5432/orderservice")
	assert.Contains(t, out, "driver-class-name: org.postgresql.Driver\n")
	assert.Contains(t, out, "ddl-auto: update\n")
	assert.Contains(t, out, "maximum-pool-size: 10\n")
	assert.True(t, strings.HasPrefix(out, "spring:\n  datasource:\n"))
}
