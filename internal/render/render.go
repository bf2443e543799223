// Package render turns named templates plus a variable map into source text.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/template"

	lru "github.com/hashicorp/golang-lru/v2"

	"genline/internal/naming"
)

//go:embed templates/*.tmpl
var builtinFS embed.FS

// Template ids shipped with the binary.
const (
	Entity             = "entity.java"
	Enum               = "enum.java"
	Repository         = "repository.java"
	Service            = "service.java"
	Controller         = "controller.java"
	PomDependencies    = "pom-dependencies.xml"
	GradleDependencies = "gradle-dependencies.gradle"
)

const DefaultCacheSize = 64

var ErrUnknownTemplate = errors.New("unknown template")

// Renderer renders the template with the given id.
type Renderer interface {
	Render(templateID string, vars map[string]any) (string, error)
}

// Templates renders text/template files looked up first in override
// directories and then in the built-in set. Parsed templates are cached.
type Templates struct {
	sources []fs.FS
	cache   *lru.Cache[string, *template.Template]
	logger  *slog.Logger
}

// New returns a renderer caching up to cacheSize parsed templates. Each
// non-empty dir shadows built-in templates of the same id.
func New(logger *slog.Logger, cacheSize int, dirs ...string) (*Templates, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *template.Template](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("template cache: %w", err)
	}
	var sources []fs.FS
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		st, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("templates dir: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("templates dir %s is not a directory", dir)
		}
		sources = append(sources, os.DirFS(dir))
	}
	builtin, err := fs.Sub(builtinFS, "templates")
	if err != nil {
		return nil, err
	}
	sources = append(sources, builtin)
	return &Templates{sources: sources, cache: cache, logger: logger}, nil
}

func (t *Templates) Render(templateID string, vars map[string]any) (string, error) {
	tmpl, err := t.lookup(templateID)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", templateID, err)
	}
	return buf.String(), nil
}

func (t *Templates) lookup(id string) (*template.Template, error) {
	if tmpl, ok := t.cache.Get(id); ok {
		return tmpl, nil
	}
	data, err := t.read(id)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", id, err)
	}
	t.cache.Add(id, tmpl)
	t.logger.Debug("template parsed", "template", id)
	return tmpl, nil
}

func (t *Templates) read(id string) ([]byte, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	name := id + ".tmpl"
	for _, src := range t.sources {
		data, err := fs.ReadFile(src, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read template %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
}

// ClearCache drops every parsed template and reports how many were held.
func (t *Templates) ClearCache() int {
	n := t.cache.Len()
	t.cache.Purge()
	t.logger.Info("template cache cleared", "entries", n)
	return n
}

// Cached reports how many parsed templates are held.
func (t *Templates) Cached() int {
	return t.cache.Len()
}

// Available lists every template id reachable from any source.
func (t *Templates) Available() []string {
	seen := map[string]struct{}{}
	for _, src := range t.sources {
		names, err := fs.Glob(src, "*.tmpl")
		if err != nil {
			continue
		}
		for _, n := range names {
			seen[strings.TrimSuffix(n, ".tmpl")] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var funcs = template.FuncMap{
	"lower":  strings.ToLower,
	"upper":  strings.ToUpper,
	"join":   strings.Join,
	"camel":  naming.CamelCase,
	"pascal": naming.PascalCase,
	"plural": naming.Pluralize,
}
