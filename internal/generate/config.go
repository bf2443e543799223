package generate

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"genline/internal/domain"
	"genline/internal/render"
)

const (
	applicationConfigPath = "src/main/resources/application.yml"
	mavenManifest         = "pom.xml"

	// dependenciesAdded counts the manifest additions plus the pool
	// library pulled in with the data starter.
	dependenciesAdded = 4
)

var (
	datasourceAdditions = []string{
		"spring.datasource configuration",
		"JPA properties",
		"Hibernate settings",
		"Connection pool configuration",
	}
	manifestAdditions = []string{
		"spring-boot-starter-data-jpa",
		"postgresql driver",
		"validation starter",
	}
)

type manifestDependency struct {
	GroupID    string
	ArtifactID string
	Scope      string
}

var manifestDependencies = []manifestDependency{
	{GroupID: "org.springframework.boot", ArtifactID: "spring-boot-starter-data-jpa"},
	{GroupID: "org.postgresql", ArtifactID: "postgresql", Scope: "runtime"},
	{GroupID: "org.springframework.boot", ArtifactID: "spring-boot-starter-validation"},
}

type hikariConfig struct {
	MaximumPoolSize   int `yaml:"maximum-pool-size"`
	MinimumIdle       int `yaml:"minimum-idle"`
	ConnectionTimeout int `yaml:"connection-timeout"`
}

type datasourceConfig struct {
	URL             string       `yaml:"url"`
	Username        string       `yaml:"username"`
	Password        string       `yaml:"password"`
	DriverClassName string       `yaml:"driver-class-name"`
	Hikari          hikariConfig `yaml:"hikari"`
}

type hibernateProperties struct {
	Dialect   string `yaml:"dialect"`
	FormatSQL bool   `yaml:"format_sql"`
}

type jpaConfig struct {
	Hibernate struct {
		DDLAuto string `yaml:"ddl-auto"`
	} `yaml:"hibernate"`
	Properties struct {
		Hibernate hibernateProperties `yaml:"hibernate"`
	} `yaml:"properties"`
	ShowSQL bool `yaml:"show-sql"`
}

type applicationConfig struct {
	Spring struct {
		Datasource datasourceConfig `yaml:"datasource"`
		JPA        jpaConfig        `yaml:"jpa"`
	} `yaml:"spring"`
}

// databaseName derives the database from the last base package segment.
func databaseName(p domain.ProjectDescriptor) string {
	base := p.BasePackage
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		return "app"
	}
	return strings.ToLower(base)
}

func applicationYAML(p domain.ProjectDescriptor) (string, error) {
	var cfg applicationConfig
	cfg.Spring.Datasource = datasourceConfig{
		URL:             fmt.Sprintf("jdbc:postgresql://localhost:5432/%s", databaseName(p)),
		Username:        "${DB_USERNAME:postgres}",
		Password:        "${DB_PASSWORD:password}",
		DriverClassName: "org.postgresql.Driver",
		Hikari:          hikariConfig{MaximumPoolSize: 10, MinimumIdle: 2, ConnectionTimeout: 30000},
	}
	cfg.Spring.JPA.Hibernate.DDLAuto = "update"
	cfg.Spring.JPA.Properties.Hibernate = hibernateProperties{Dialect: "org.hibernate.dialect.PostgreSQLDialect", FormatSQL: true}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode application.yml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// configuration builds the single cross-cutting category: the datastore
// settings and the dependency manifest, both as modify actions.
func configuration(p domain.ProjectDescriptor, r render.Renderer) (domain.FileCategory, error) {
	app, err := applicationYAML(p)
	if err != nil {
		return domain.FileCategory{}, err
	}
	manifestPath, templateID, vars := manifestFor(p)
	manifest, err := r.Render(templateID, vars)
	if err != nil {
		return domain.FileCategory{}, fmt.Errorf("manifest: %w", err)
	}
	return domain.FileCategory{
		Category: domain.CategoryConfiguration,
		Files: []domain.GeneratedFile{
			modifyFile(applicationConfigPath, app, datasourceAdditions),
			modifyFile(manifestPath, manifest, manifestAdditions),
		},
	}, nil
}

// manifestFor picks the build file to patch. Anything not detected as
// Gradle gets Maven dependencies.
func manifestFor(p domain.ProjectDescriptor) (path, templateID string, vars map[string]any) {
	deps := make([]map[string]any, 0, len(manifestDependencies))
	if p.BuildTool != "gradle" {
		for _, d := range manifestDependencies {
			deps = append(deps, map[string]any{"groupId": d.GroupID, "artifactId": d.ArtifactID, "scope": d.Scope})
		}
		return mavenManifest, render.PomDependencies, map[string]any{"dependencies": deps}
	}
	for _, d := range manifestDependencies {
		configuration := "implementation"
		if d.Scope == "runtime" {
			configuration = "runtimeOnly"
		}
		deps = append(deps, map[string]any{"groupId": d.GroupID, "artifactId": d.ArtifactID, "configuration": configuration})
	}
	path = p.BuildFile
	if path == "" {
		path = "build.gradle"
	}
	return path, render.GradleDependencies, map[string]any{
		"dependencies": deps,
		"kotlin":       strings.HasSuffix(path, ".kts"),
	}
}

func modifyFile(p, content string, added []string) domain.GeneratedFile {
	return domain.GeneratedFile{
		Path:    p,
		Action:  domain.ActionModify,
		Content: content,
		Size:    countLines(content),
		Changes: &domain.ChangeSummary{Added: append([]string(nil), added...)},
	}
}
