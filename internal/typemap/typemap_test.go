package typemap

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetType(t *testing.T) {
	m := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	cases := map[string]string{
		"int":                      "Integer",
		"INTEGER":                  "Integer",
		"bigint":                   "Long",
		"varchar(255)":             "String",
		"numeric(10, 2)":           "BigDecimal",
		" timestamp ":              "LocalDateTime",
		"timestamp with time zone": "OffsetDateTime",
		"bool":                     "Boolean",
		"uuid":                     "UUID",
		"bytea":                    "byte[]",
		"text[]":                   "List<String>",
		"inet":                     "InetAddress",
		"point":                    "PGpoint",
	}
	for in, want := range cases {
		assert.Equal(t, want, m.TargetType(in), in)
	}
}

func TestUnknownTypeDegradesAndWarns(t *testing.T) {
	var buf bytes.Buffer
	m := New(slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Equal(t, DefaultType, m.TargetType("geography"))
	assert.Contains(t, buf.String(), "geography")
	assert.Equal(t, DefaultType, m.TargetType(""))

	var zero Mapper
	assert.Equal(t, "Long", zero.TargetType("int8"))
}

func TestTargetTypeForHints(t *testing.T) {
	m := &Mapper{}
	assert.Equal(t, "Money", m.TargetTypeFor("numeric", Hints{TargetType: "Money"}))
	assert.Equal(t, "StatusType", m.TargetTypeFor("varchar", Hints{FieldName: "status", Enum: true}))
	assert.Equal(t, "AccountStatusType", m.TargetTypeFor("varchar", Hints{FieldName: "account_status", Enum: true}))
	assert.Equal(t, "Settings", m.TargetTypeFor("jsonb", Hints{JSONClass: "Settings"}))
	assert.Equal(t, "Map<String, Object>", m.TargetTypeFor("json", Hints{JSONObject: true}))
	assert.Equal(t, "String", m.TargetTypeFor("json", Hints{}))
}

func TestImports(t *testing.T) {
	got := Imports([]string{"String", "LocalDateTime", "BigDecimal", "List<UUID>", "Map<String, Object>", "LocalDateTime"})
	assert.Equal(t, []string{
		"java.math.BigDecimal",
		"java.time.LocalDateTime",
		"java.util.List",
		"java.util.Map",
		"java.util.UUID",
	}, got)
	assert.Empty(t, Imports([]string{"String", "Integer"}))
}

func TestStorageAndORMTypes(t *testing.T) {
	assert.Equal(t, "LONGVARCHAR", StorageType("text"))
	assert.Equal(t, "VARCHAR", StorageType("varchar(20)"))
	assert.Equal(t, "OTHER", StorageType("jsonb"))
	assert.Equal(t, "VARCHAR", StorageType(""))

	orm, ok := ORMType("jsonb")
	assert.True(t, ok)
	assert.Equal(t, "jsonb", orm)
	orm, ok = ORMType("integer[]")
	assert.True(t, ok)
	assert.Equal(t, "int-array", orm)
	_, ok = ORMType("varchar")
	assert.False(t, ok)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsCollection("List<String>"))
	assert.True(t, IsCollection("byte[]"))
	assert.False(t, IsCollection("String"))
	assert.True(t, IsWrapper("Integer"))
	assert.False(t, IsWrapper("String"))
}

func TestValidationAnnotation(t *testing.T) {
	m := &Mapper{}
	assert.Equal(t, "", m.ValidationAnnotation("varchar", true))
	assert.Equal(t, "@NotBlank", m.ValidationAnnotation("varchar", false))
	assert.Equal(t, "@NotNull", m.ValidationAnnotation("bigint", false))
}

func TestMapTypes(t *testing.T) {
	m := &Mapper{}
	assert.Equal(t, map[string]string{"int": "Integer", "text": "String"}, m.MapTypes([]string{"int", "text", "int"}))
}
