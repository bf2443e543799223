package render

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genline/internal/logging"
)

func newTemplates(t *testing.T, dirs ...string) *Templates {
	t.Helper()
	r, err := New(logging.Discard(), 8, dirs...)
	require.NoError(t, err)
	return r
}

func TestRenderEnum(t *testing.T) {
	r := newTemplates(t)
	out, err := r.Render(Enum, map[string]any{
		"packageName": "com.example.entity.enums",
		"enumName":    "StatusType",
		"values":      []string{"ACTIVE", "DISABLED"},
	})
	require.NoError(t, err)
	assert.Equal(t, `package com.example.entity.enums;

public enum StatusType {
    ACTIVE,
    DISABLED
}
`, out)
}

func TestRenderPomDependencies(t *testing.T) {
	r := newTemplates(t)
	out, err := r.Render(PomDependencies, map[string]any{
		"dependencies": []map[string]any{
			{"groupId": "org.postgresql", "artifactId": "postgresql", "scope": "runtime"},
			{"groupId": "org.springframework.boot", "artifactId": "spring-boot-starter-validation", "scope": ""},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "<artifactId>postgresql</artifactId>\n    <scope>runtime</scope>\n</dependency>")
	assert.Equal(t, 1, strings.Count(out, "<scope>"))
	assert.Equal(t, 2, strings.Count(out, "<dependency>"))
}

func TestRenderGradleDependencies(t *testing.T) {
	r := newTemplates(t)
	deps := []map[string]any{
		{"groupId": "org.springframework.boot", "artifactId": "spring-boot-starter-data-jpa", "configuration": "implementation"},
		{"groupId": "org.postgresql", "artifactId": "postgresql", "configuration": "runtimeOnly"},
	}
	out, err := r.Render(GradleDependencies, map[string]any{"dependencies": deps, "kotlin": false})
	require.NoError(t, err)
	assert.Equal(t, "dependencies {\n    implementation 'org.springframework.boot:spring-boot-starter-data-jpa'\n    runtimeOnly 'org.postgresql:postgresql'\n}\n", out)

	out, err = r.Render(GradleDependencies, map[string]any{"dependencies": deps, "kotlin": true})
	require.NoError(t, err)
	assert.Contains(t, out, `    runtimeOnly("org.postgresql:postgresql")`)
}

func TestRenderErrors(t *testing.T) {
	r := newTemplates(t)

	_, err := r.Render("missing.java", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = r.Render("../render.go", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = r.Render(Enum, map[string]any{"packageName": "p"})
	assert.ErrorContains(t, err, "enumName")
}

func TestOverrideDirShadowsBuiltin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enum.java.tmpl"), []byte("enum {{.enumName}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.java.tmpl"), []byte("// {{upper .name}}"), 0o644))
	r := newTemplates(t, dir)

	out, err := r.Render(Enum, map[string]any{"enumName": "X"})
	require.NoError(t, err)
	assert.Equal(t, "enum X", out)

	out, err = r.Render("readme.java", map[string]any{"name": "orders"})
	require.NoError(t, err)
	assert.Equal(t, "// ORDERS", out)

	assert.Contains(t, r.Available(), "readme.java")
	assert.Contains(t, r.Available(), Controller)
}

func TestNewRejectsMissingDir(t *testing.T) {
	_, err := New(logging.Discard(), 8, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCacheAndClear(t *testing.T) {
	r := newTemplates(t)
	vars := map[string]any{"packageName": "p", "enumName": "E", "values": []string{"A"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Render(Enum, vars)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Cached())

	assert.Equal(t, 1, r.ClearCache())
	assert.Equal(t, 0, r.Cached())
	assert.Equal(t, 0, r.ClearCache())
}

func TestAvailableBuiltins(t *testing.T) {
	assert.Equal(t,
		[]string{Controller, Entity, Enum, GradleDependencies, PomDependencies, Repository, Service},
		newTemplates(t).Available(),
	)
}
