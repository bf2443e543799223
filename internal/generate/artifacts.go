package generate

import (
	"fmt"
	"path"
	"strings"

	"genline/internal/domain"
	"genline/internal/naming"
	"genline/internal/render"
	"genline/internal/typemap"
)

const (
	sourceRoot       = "src/main/java"
	defaultKeyType   = "Long"
	enumSubpackage   = "enums"
	auditTimestampTy = "LocalDateTime"
)

// Typed render contexts. They become template variables only in vars().

type fieldContext struct {
	Name          string
	Column        string
	Type          string
	Validation    string
	Getter        string
	Setter        string
	Primary       bool
	AutoIncrement bool
	Nullable      bool
	Unique        bool
	Enum          bool
	Length        int
}

func (f fieldContext) vars() map[string]any {
	return map[string]any{
		"name":          f.Name,
		"columnName":    f.Column,
		"type":          f.Type,
		"validation":    f.Validation,
		"getter":        f.Getter,
		"setter":        f.Setter,
		"isPrimary":     f.Primary,
		"autoIncrement": f.AutoIncrement,
		"isNullable":    f.Nullable,
		"isUnique":      f.Unique,
		"isEnum":        f.Enum,
		"length":        f.Length,
	}
}

type entityContext struct {
	Package     string
	Class       string
	Table       string
	Fields      []fieldContext
	Imports     []string
	EnumImports []string
	Lombok      bool
	Validation  bool
	Audit       bool
	IDStrategy  string
}

func (c entityContext) vars() map[string]any {
	fields := make([]map[string]any, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, f.vars())
	}
	return map[string]any{
		"packageName":   c.Package,
		"className":     c.Class,
		"tableName":     c.Table,
		"fields":        fields,
		"imports":       c.Imports,
		"enumImports":   c.EnumImports,
		"hasLombok":     c.Lombok,
		"hasValidation": c.Validation,
		"auditFields":   c.Audit,
		"idStrategy":    c.IDStrategy,
	}
}

type enumContext struct {
	Package string
	Name    string
	Values  []string
}

func (c enumContext) vars() map[string]any {
	return map[string]any{"packageName": c.Package, "enumName": c.Name, "values": c.Values}
}

type finderContext struct {
	Property string
	Type     string
	Name     string
}

type repositoryContext struct {
	Package        string
	Name           string
	EntityClass    string
	EntityPackage  string
	PrimaryKeyType string
	Imports        []string
	Finders        []finderContext
}

func (c repositoryContext) vars() map[string]any {
	finders := make([]map[string]any, 0, len(c.Finders))
	for _, f := range c.Finders {
		finders = append(finders, map[string]any{"property": f.Property, "type": f.Type, "name": f.Name})
	}
	return map[string]any{
		"packageName":    c.Package,
		"repositoryName": c.Name,
		"entityClass":    c.EntityClass,
		"entityPackage":  c.EntityPackage,
		"primaryKeyType": c.PrimaryKeyType,
		"imports":        c.Imports,
		"finders":        finders,
	}
}

type serviceContext struct {
	Package           string
	Name              string
	EntityClass       string
	EntityPackage     string
	RepositoryClass   string
	RepositoryPackage string
	PrimaryKeyType    string
	Imports           []string
}

func (c serviceContext) vars() map[string]any {
	return map[string]any{
		"packageName":       c.Package,
		"serviceName":       c.Name,
		"entityClass":       c.EntityClass,
		"entityPackage":     c.EntityPackage,
		"repositoryClass":   c.RepositoryClass,
		"repositoryPackage": c.RepositoryPackage,
		"repositoryVar":     naming.VariableName(c.RepositoryClass),
		"primaryKeyType":    c.PrimaryKeyType,
		"imports":           c.Imports,
	}
}

type controllerContext struct {
	Package        string
	Name           string
	EntityClass    string
	EntityPackage  string
	ServiceClass   string
	ServicePackage string
	APIPath        string
	PrimaryKeyType string
	Validation     bool
	Imports        []string
}

func (c controllerContext) vars() map[string]any {
	return map[string]any{
		"packageName":    c.Package,
		"controllerName": c.Name,
		"entityClass":    c.EntityClass,
		"entityPackage":  c.EntityPackage,
		"serviceClass":   c.ServiceClass,
		"servicePackage": c.ServicePackage,
		"serviceVar":     naming.VariableName(c.ServiceClass),
		"apiPath":        c.APIPath,
		"primaryKeyType": c.PrimaryKeyType,
		"hasValidation":  c.Validation,
		"imports":        c.Imports,
	}
}

// tableGen produces the four categories of one table. It owns its
// descriptor copy and shares nothing mutable with other tables.
type tableGen struct {
	table    domain.Table
	project  domain.ProjectDescriptor
	opts     genOptions
	types    *typemap.Mapper
	renderer render.Renderer
}

func (g *tableGen) run() ([]domain.FileCategory, error) {
	g.scopeToModule()
	entity, err := g.entity()
	if err != nil {
		return nil, err
	}
	repo, err := g.repository()
	if err != nil {
		return nil, err
	}
	svc, err := g.service()
	if err != nil {
		return nil, err
	}
	ctrl, err := g.controller()
	if err != nil {
		return nil, err
	}
	return []domain.FileCategory{entity, repo, svc, ctrl}, nil
}

// scopeToModule nests every role package under the table's module:
// com.example.entity -> com.example.billing.entity.
func (g *tableGen) scopeToModule() {
	if g.table.Module == "" {
		return
	}
	base := g.project.BasePackage
	scoped := make(map[string]string, len(domain.PackageRoles))
	for _, role := range domain.PackageRoles {
		pkg := g.project.Package(role)
		if base != "" && strings.HasPrefix(pkg, base+".") {
			scoped[role] = naming.PackageName(base, g.table.Module) + pkg[len(base):]
		} else {
			scoped[role] = naming.PackageName(pkg, g.table.Module)
		}
	}
	if g.project.Packages == nil {
		g.project.Packages = map[string]string{}
	}
	for role, pkg := range scoped {
		g.project.Packages[role] = pkg
	}
}

func (g *tableGen) className() string {
	return naming.PascalCase(g.table.Name)
}

// primaryKeyType is the mapped type of the first primary key column.
func (g *tableGen) primaryKeyType() string {
	for _, f := range g.table.Fields {
		if f.PrimaryKey {
			return g.types.TargetType(f.Type)
		}
	}
	return defaultKeyType
}

func (g *tableGen) entity() (domain.FileCategory, error) {
	class := g.className()
	pkg := g.project.Package(domain.RoleEntity)
	enumPkg := pkg + "." + enumSubpackage
	validation := g.project.Feature("validation", true)

	ctx := entityContext{
		Package:    pkg,
		Class:      class,
		Table:      sqlTableName(g.opts.tableName(g.table.Name)),
		Lombok:     g.project.Feature("lombok", true),
		Validation: validation,
		Audit:      g.opts.auditFields,
		IDStrategy: g.opts.idGeneration,
	}
	var (
		types []string
		enums []enumContext
	)
	for _, f := range g.table.Fields {
		literals := enumLiterals(f.EnumValues)
		isEnum := len(literals) > 0
		name := naming.EscapeKeyword(naming.CamelCase(f.Name))
		typ := g.types.TargetTypeFor(f.Type, typemap.Hints{FieldName: f.Name, Enum: isEnum})
		fc := fieldContext{
			Name:          name,
			Column:        f.Name,
			Type:          typ,
			Getter:        naming.GetterName(name, typ),
			Setter:        naming.SetterName(name),
			Primary:       f.PrimaryKey,
			AutoIncrement: f.AutoIncrement,
			Nullable:      f.IsNullable(),
			Unique:        f.Unique,
			Enum:          isEnum,
		}
		if f.Length != nil {
			fc.Length = *f.Length
		}
		if validation && !f.PrimaryKey && !isEnum {
			fc.Validation = g.types.ValidationAnnotation(f.Type, f.IsNullable())
		}
		ctx.Fields = append(ctx.Fields, fc)
		if isEnum {
			ctx.EnumImports = append(ctx.EnumImports, enumPkg+"."+typ)
			enums = append(enums, enumContext{Package: enumPkg, Name: typ, Values: literals})
			continue
		}
		types = append(types, typ)
	}
	if ctx.Audit {
		types = append(types, auditTimestampTy)
	}
	ctx.Imports = typemap.Imports(types)
	if ctx.Audit {
		ctx.Imports = append(ctx.Imports, "org.hibernate.annotations.CreationTimestamp", "org.hibernate.annotations.UpdateTimestamp")
	}

	content, err := g.renderer.Render(render.Entity, ctx.vars())
	if err != nil {
		return domain.FileCategory{}, fmt.Errorf("entity %s: %w", class, err)
	}
	files := []domain.GeneratedFile{newFile(javaPath(pkg, class), content)}
	for _, e := range enums {
		out, err := g.renderer.Render(render.Enum, e.vars())
		if err != nil {
			return domain.FileCategory{}, fmt.Errorf("enum %s: %w", e.Name, err)
		}
		files = append(files, newFile(javaPath(e.Package, e.Name), out))
	}
	return domain.FileCategory{Category: domain.CategoryEntities, Files: files}, nil
}

func (g *tableGen) repository() (domain.FileCategory, error) {
	class := g.className()
	ctx := repositoryContext{
		Package:        g.project.Package(domain.RoleRepository),
		Name:           class + "Repository",
		EntityClass:    class,
		EntityPackage:  g.project.Package(domain.RoleEntity),
		PrimaryKeyType: g.primaryKeyType(),
	}
	types := []string{ctx.PrimaryKeyType}
	for _, f := range g.table.Fields {
		if !f.Unique || f.PrimaryKey {
			continue
		}
		name := naming.EscapeKeyword(naming.CamelCase(f.Name))
		typ := g.types.TargetTypeFor(f.Type, typemap.Hints{FieldName: f.Name, Enum: len(enumLiterals(f.EnumValues)) > 0})
		ctx.Finders = append(ctx.Finders, finderContext{Property: naming.PascalCase(f.Name), Type: typ, Name: name})
		types = append(types, typ)
	}
	if len(ctx.Finders) > 0 {
		types = append(types, "Optional<"+class+">")
	}
	ctx.Imports = typemap.Imports(types)
	return g.single(domain.CategoryRepositories, render.Repository, ctx.Package, ctx.Name, ctx.vars())
}

func (g *tableGen) service() (domain.FileCategory, error) {
	class := g.className()
	ctx := serviceContext{
		Package:           g.project.Package(domain.RoleService),
		Name:              class + "Service",
		EntityClass:       class,
		EntityPackage:     g.project.Package(domain.RoleEntity),
		RepositoryClass:   class + "Repository",
		RepositoryPackage: g.project.Package(domain.RoleRepository),
		PrimaryKeyType:    g.primaryKeyType(),
	}
	ctx.Imports = typemap.Imports([]string{"List<" + class + ">", "Optional<" + class + ">", ctx.PrimaryKeyType})
	return g.single(domain.CategoryServices, render.Service, ctx.Package, ctx.Name, ctx.vars())
}

func (g *tableGen) controller() (domain.FileCategory, error) {
	class := g.className()
	ctx := controllerContext{
		Package:        g.project.Package(domain.RoleController),
		Name:           class + "Controller",
		EntityClass:    class,
		EntityPackage:  g.project.Package(domain.RoleEntity),
		ServiceClass:   class + "Service",
		ServicePackage: g.project.Package(domain.RoleService),
		APIPath:        "/api/" + strings.ToLower(g.table.Name),
		PrimaryKeyType: g.primaryKeyType(),
		Validation:     g.project.Feature("validation", true),
	}
	ctx.Imports = typemap.Imports([]string{"List<" + class + ">", ctx.PrimaryKeyType})
	return g.single(domain.CategoryControllers, render.Controller, ctx.Package, ctx.Name, ctx.vars())
}

func (g *tableGen) single(category, templateID, pkg, class string, vars map[string]any) (domain.FileCategory, error) {
	content, err := g.renderer.Render(templateID, vars)
	if err != nil {
		return domain.FileCategory{}, fmt.Errorf("%s %s: %w", strings.ToLower(category), class, err)
	}
	return domain.FileCategory{Category: category, Files: []domain.GeneratedFile{newFile(javaPath(pkg, class), content)}}, nil
}

func javaPath(pkg, class string) string {
	return path.Join(sourceRoot, naming.PackagePath(pkg), class+".java")
}

func newFile(p, content string) domain.GeneratedFile {
	return domain.GeneratedFile{Path: p, Action: domain.ActionCreate, Content: content, Size: countLines(content)}
}

// enumLiterals keeps declared order and drops blank values.
func enumLiterals(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// sqlTableName quotes reserved words inside the generated string literal.
func sqlTableName(name string) string {
	return strings.ReplaceAll(naming.EscapeSQLKeyword(name), `"`, `\"`)
}

// countLines counts newline separated lines, ignoring trailing newlines.
func countLines(content string) int {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
