// Package analyzer inspects a project directory and describes its build,
// framework, package layout and detected features.
package analyzer

import (
	"context"
	"encoding/xml"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"genline/internal/domain"
)

// Defaults used when a build file is missing or unreadable.
const (
	DefaultLanguage         = "Java"
	DefaultLanguageVersion  = "17"
	DefaultFramework        = "Spring Boot"
	DefaultFrameworkVersion = "3.2.0"
	DefaultBasePackage      = "com.example"
)

const (
	BuildMaven   = "maven"
	BuildGradle  = "gradle"
	BuildUnknown = "unknown"
)

const springBootGroup = "org.springframework.boot"

// Analyzer describes the project rooted at path.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (domain.ProjectDescriptor, error)
}

// FS analyzes projects on the local filesystem. It never fails on unreadable
// build files; it falls back to defaults and logs instead.
type FS struct {
	Logger *slog.Logger
}

func (a FS) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// role -> directory candidates, first match wins
var roleDirs = map[string][]string{
	domain.RoleEntity:     {"entity", "model"},
	domain.RoleRepository: {"repository", "repo"},
	domain.RoleService:    {"service"},
	domain.RoleController: {"controller", "web", "rest"},
	domain.RoleDTO:        {"dto"},
	domain.RoleConfig:     {"config", "configuration"},
}

var featureMarkers = map[string][]string{
	"lombok":     {"lombok"},
	"jpa":        {"spring-boot-starter-data-jpa"},
	"validation": {"spring-boot-starter-validation"},
	"database":   {"postgresql", "mysql", "h2database"},
	"web":        {"spring-boot-starter-web"},
	"security":   {"spring-boot-starter-security"},
}

func (a FS) Analyze(ctx context.Context, path string) (domain.ProjectDescriptor, error) {
	if path == "" {
		path = "."
	}
	a.logger().InfoContext(ctx, "analyzing project", "path", path)
	d := domain.ProjectDescriptor{Path: path}

	var buildContent []byte
	switch {
	case exists(filepath.Join(path, "pom.xml")):
		d.BuildTool, d.BuildFile = BuildMaven, "pom.xml"
		buildContent = a.readFile(filepath.Join(path, d.BuildFile))
		a.applyMaven(&d, buildContent)
	case exists(filepath.Join(path, "build.gradle")):
		d.BuildTool, d.BuildFile = BuildGradle, "build.gradle"
		buildContent = a.readFile(filepath.Join(path, d.BuildFile))
		applyGradle(&d, buildContent)
	case exists(filepath.Join(path, "build.gradle.kts")):
		d.BuildTool, d.BuildFile = BuildGradle, "build.gradle.kts"
		buildContent = a.readFile(filepath.Join(path, d.BuildFile))
		applyGradle(&d, buildContent)
	default:
		d.BuildTool = BuildUnknown
	}
	applyDefaults(&d)
	d.Packages = detectPackages(path, d.BasePackage)
	d.Features = detectFeatures(buildContent)
	return d, nil
}

func (a FS) readFile(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		a.logger().Warn("read build file", "path", path, "err", err)
		return nil
	}
	return data
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

type pomProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type pom struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Parent     struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
	} `xml:"parent"`
	Properties struct {
		Entries []pomProperty `xml:",any"`
	} `xml:"properties"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

func (p pom) property(name string) string {
	for _, e := range p.Properties.Entries {
		if e.XMLName.Local == name {
			return strings.TrimSpace(e.Value)
		}
	}
	return ""
}

func (a FS) applyMaven(d *domain.ProjectDescriptor, content []byte) {
	if len(content) == 0 {
		return
	}
	var p pom
	if err := xml.Unmarshal(content, &p); err != nil {
		a.logger().Warn("parse pom.xml, using defaults", "err", err)
		return
	}
	d.Language = DefaultLanguage
	d.LanguageVersion = firstNonEmpty(p.property("maven.compiler.source"), p.property("java.version"))

	group := firstNonEmpty(p.GroupID, p.Parent.GroupID)
	if group != "" {
		d.BasePackage = group
		if p.ArtifactID != "" {
			d.BasePackage += "." + strings.ReplaceAll(p.ArtifactID, "-", "")
		}
	}

	springBoot := p.Parent.GroupID == springBootGroup
	if springBoot && p.Parent.Version != "" {
		d.FrameworkVersion = p.Parent.Version
	}
	for _, dep := range p.Dependencies {
		if dep.GroupID == springBootGroup {
			springBoot = true
		}
		d.Dependencies = append(d.Dependencies, domain.Dependency{
			GroupID:    strings.TrimSpace(dep.GroupID),
			ArtifactID: strings.TrimSpace(dep.ArtifactID),
			Version:    strings.TrimSpace(dep.Version),
			Scope:      strings.TrimSpace(dep.Scope),
		})
	}
	if springBoot {
		d.Framework = DefaultFramework
	}
}

var (
	gradleCompat  = regexp.MustCompile(`(?:source|target)Compatibility\s*=\s*(.+)`)
	gradleVersion = regexp.MustCompile(`VERSION_(\d+)(?:_(\d+))?`)
	gradleDigits  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	gradleBoot    = regexp.MustCompile(`org\.springframework\.boot['"]?\)?\s*version\s*['"]([^'"]+)['"]`)
	gradleDep     = regexp.MustCompile(`(?m)^\s*(implementation|api|compileOnly|runtimeOnly|testImplementation|annotationProcessor)\s*\(?\s*['"]([^:'"]+):([^:'"]+)(?::([^'"]+))?['"]`)
)

func applyGradle(d *domain.ProjectDescriptor, content []byte) {
	if len(content) == 0 {
		return
	}
	text := string(content)
	d.Language = DefaultLanguage
	if m := gradleCompat.FindStringSubmatch(text); m != nil {
		d.LanguageVersion = gradleJavaVersion(m[1])
	}
	if strings.Contains(text, springBootGroup) {
		d.Framework = DefaultFramework
		if m := gradleBoot.FindStringSubmatch(text); m != nil {
			d.FrameworkVersion = m[1]
		}
	}
	for _, m := range gradleDep.FindAllStringSubmatch(text, -1) {
		scope := ""
		if strings.HasPrefix(m[1], "test") {
			scope = "test"
		}
		d.Dependencies = append(d.Dependencies, domain.Dependency{GroupID: m[2], ArtifactID: m[3], Version: m[4], Scope: scope})
	}
}

func gradleJavaVersion(expr string) string {
	if m := gradleVersion.FindStringSubmatch(expr); m != nil {
		if m[2] != "" {
			return m[1] + "." + m[2]
		}
		return m[1]
	}
	return gradleDigits.FindString(expr)
}

func applyDefaults(d *domain.ProjectDescriptor) {
	if d.Language == "" {
		d.Language = DefaultLanguage
	}
	if d.LanguageVersion == "" {
		d.LanguageVersion = DefaultLanguageVersion
	}
	if d.Framework == "" {
		d.Framework = DefaultFramework
	}
	if d.FrameworkVersion == "" {
		d.FrameworkVersion = DefaultFrameworkVersion
	}
	if d.BasePackage == "" {
		d.BasePackage = DefaultBasePackage
	}
}

func detectPackages(root, base string) map[string]string {
	baseDir := filepath.Join(root, "src", "main", "java", filepath.FromSlash(strings.ReplaceAll(base, ".", "/")))
	scan := exists(baseDir)
	out := make(map[string]string, len(roleDirs))
	for role, candidates := range roleDirs {
		out[role] = base + "." + candidates[0]
		if !scan {
			continue
		}
		for _, dir := range candidates {
			if exists(filepath.Join(baseDir, dir)) {
				out[role] = base + "." + dir
				break
			}
		}
	}
	return out
}

func detectFeatures(content []byte) map[string]bool {
	out := map[string]bool{}
	if len(content) == 0 {
		return out
	}
	text := string(content)
	for feature, markers := range featureMarkers {
		for _, m := range markers {
			if strings.Contains(text, m) {
				out[feature] = true
				break
			}
		}
		if !out[feature] {
			out[feature] = false
		}
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
