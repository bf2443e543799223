// Package typemap maps SQL column types onto the target language type system.
package typemap

import (
	"log/slog"
	"sort"
	"strings"

	"genline/internal/naming"
)

// DefaultType is returned for column types the mapper does not know.
const DefaultType = "String"

var targetTypes = map[string]string{
	// numeric
	"SMALLINT":         "Short",
	"SMALLSERIAL":      "Short",
	"INTEGER":          "Integer",
	"INT":              "Integer",
	"INT2":             "Short",
	"INT4":             "Integer",
	"INT8":             "Long",
	"SERIAL":           "Integer",
	"BIGINT":           "Long",
	"BIGSERIAL":        "Long",
	"DECIMAL":          "BigDecimal",
	"NUMERIC":          "BigDecimal",
	"REAL":             "Float",
	"FLOAT":            "Float",
	"FLOAT4":           "Float",
	"FLOAT8":           "Double",
	"DOUBLE":           "Double",
	"DOUBLE PRECISION": "Double",
	"MONEY":            "BigDecimal",

	// character
	"VARCHAR":           "String",
	"CHAR":              "String",
	"CHARACTER":         "String",
	"CHARACTER VARYING": "String",
	"TEXT":              "String",
	"NAME":              "String",
	"BPCHAR":            "String",

	// binary
	"BYTEA":     "byte[]",
	"BLOB":      "byte[]",
	"BINARY":    "byte[]",
	"VARBINARY": "byte[]",

	// date and time
	"DATE":                        "LocalDate",
	"TIME":                        "LocalTime",
	"TIMETZ":                      "OffsetTime",
	"TIME WITH TIME ZONE":         "OffsetTime",
	"TIME WITHOUT TIME ZONE":      "LocalTime",
	"TIMESTAMP":                   "LocalDateTime",
	"TIMESTAMPTZ":                 "OffsetDateTime",
	"TIMESTAMP WITH TIME ZONE":    "OffsetDateTime",
	"TIMESTAMP WITHOUT TIME ZONE": "LocalDateTime",
	"INTERVAL":                    "Duration",

	"BOOLEAN": "Boolean",
	"BOOL":    "Boolean",
	"BIT":     "Boolean",

	"UUID": "UUID",

	"JSON":  "String",
	"JSONB": "String",

	// arrays
	"INTEGER[]": "List<Integer>",
	"BIGINT[]":  "List<Long>",
	"VARCHAR[]": "List<String>",
	"TEXT[]":    "List<String>",
	"UUID[]":    "List<UUID>",

	// PostgreSQL geometric
	"POINT":   "PGpoint",
	"LINE":    "PGline",
	"LSEG":    "PGlseg",
	"BOX":     "PGbox",
	"PATH":    "PGpath",
	"POLYGON": "PGpolygon",
	"CIRCLE":  "PGcircle",

	// network
	"INET":     "InetAddress",
	"CIDR":     "String",
	"MACADDR":  "String",
	"MACADDR8": "String",
}

var typeImports = map[string]string{
	"BigDecimal":     "java.math.BigDecimal",
	"LocalDate":      "java.time.LocalDate",
	"LocalTime":      "java.time.LocalTime",
	"LocalDateTime":  "java.time.LocalDateTime",
	"OffsetDateTime": "java.time.OffsetDateTime",
	"OffsetTime":     "java.time.OffsetTime",
	"Duration":       "java.time.Duration",
	"Instant":        "java.time.Instant",
	"UUID":           "java.util.UUID",
	"List":           "java.util.List",
	"Optional":       "java.util.Optional",
	"Set":            "java.util.Set",
	"Map":            "java.util.Map",
	"ArrayList":      "java.util.ArrayList",
	"HashSet":        "java.util.HashSet",
	"HashMap":        "java.util.HashMap",
	"InetAddress":    "java.net.InetAddress",
	"PGpoint":        "org.postgresql.geometric.PGpoint",
	"PGline":         "org.postgresql.geometric.PGline",
	"PGlseg":         "org.postgresql.geometric.PGlseg",
	"PGbox":          "org.postgresql.geometric.PGbox",
	"PGpath":         "org.postgresql.geometric.PGpath",
	"PGpolygon":      "org.postgresql.geometric.PGpolygon",
	"PGcircle":       "org.postgresql.geometric.PGcircle",
}

var storageTypes = map[string]string{
	"VARCHAR":   "VARCHAR",
	"TEXT":      "LONGVARCHAR",
	"INTEGER":   "INTEGER",
	"BIGINT":    "BIGINT",
	"SMALLINT":  "SMALLINT",
	"DECIMAL":   "DECIMAL",
	"NUMERIC":   "NUMERIC",
	"REAL":      "REAL",
	"DOUBLE":    "DOUBLE",
	"BOOLEAN":   "BOOLEAN",
	"DATE":      "DATE",
	"TIME":      "TIME",
	"TIMESTAMP": "TIMESTAMP",
	"BINARY":    "BINARY",
	"VARBINARY": "VARBINARY",
	"BLOB":      "BLOB",
	"CLOB":      "CLOB",
}

var ormTypes = map[string]string{
	"JSON":      "json",
	"JSONB":     "jsonb",
	"UUID":      "uuid-char",
	"INET":      "inet",
	"INTEGER[]": "int-array",
	"VARCHAR[]": "string-array",
}

var wrapperTypes = map[string]struct{}{
	"Boolean": {}, "Byte": {}, "Character": {}, "Short": {},
	"Integer": {}, "Long": {}, "Float": {}, "Double": {},
}

// Hints override the plain column type mapping for a single field.
type Hints struct {
	// TargetType wins over every other rule when set.
	TargetType string
	// FieldName plus Enum maps the field onto its generated enumeration type.
	FieldName string
	Enum      bool
	// JSONClass and JSONObject refine JSON/JSONB columns.
	JSONClass  string
	JSONObject bool
}

// Mapper resolves target types. The zero value is usable and logs to slog.Default.
type Mapper struct {
	Logger *slog.Logger
}

// New returns a Mapper that reports unknown types to logger.
func New(logger *slog.Logger) *Mapper {
	return &Mapper{Logger: logger}
}

func (m *Mapper) logger() *slog.Logger {
	if m == nil || m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// TargetType maps a column type such as "varchar(255)" to its target type.
// Unknown types fall back to DefaultType and are logged.
func (m *Mapper) TargetType(sqlType string) string {
	key := baseType(sqlType)
	if key == "" {
		return DefaultType
	}
	if t, ok := targetTypes[key]; ok {
		return t
	}
	m.logger().Warn("unknown column type, using default", "sql_type", sqlType, "default", DefaultType)
	return DefaultType
}

// TargetTypeFor applies field level hints before falling back to TargetType.
func (m *Mapper) TargetTypeFor(sqlType string, h Hints) string {
	if h.TargetType != "" {
		return h.TargetType
	}
	if h.Enum && h.FieldName != "" {
		return EnumTypeName(h.FieldName)
	}
	if k := baseType(sqlType); k == "JSON" || k == "JSONB" {
		if h.JSONClass != "" {
			return h.JSONClass
		}
		if h.JSONObject {
			return "Map<String, Object>"
		}
	}
	return m.TargetType(sqlType)
}

// EnumTypeName is the generated enumeration type for a field: status -> StatusType.
func EnumTypeName(fieldName string) string {
	return naming.PascalCase(fieldName) + "Type"
}

// Imports returns the sorted, de-duplicated imports the given target types need.
func Imports(types []string) []string {
	seen := map[string]struct{}{}
	for _, t := range types {
		base := t
		if i := strings.Index(t, "<"); i >= 0 {
			base = t[:i]
			if j := strings.LastIndex(t, ">"); j > i {
				for _, arg := range strings.Split(t[i+1:j], ",") {
					if imp, ok := typeImports[strings.TrimSpace(arg)]; ok {
						seen[imp] = struct{}{}
					}
				}
			}
		}
		if imp, ok := typeImports[base]; ok {
			seen[imp] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for imp := range seen {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

// StorageType returns the JDBC style type name, OTHER when unknown.
func StorageType(sqlType string) string {
	if strings.TrimSpace(sqlType) == "" {
		return "VARCHAR"
	}
	if t, ok := storageTypes[baseType(sqlType)]; ok {
		return t
	}
	return "OTHER"
}

// ORMType returns the special ORM type hint for columns that need one.
func ORMType(sqlType string) (string, bool) {
	t, ok := ormTypes[strings.ToUpper(strings.TrimSpace(sqlType))]
	return t, ok
}

// IsCollection reports whether a target type is a list, set or array.
func IsCollection(targetType string) bool {
	return strings.HasPrefix(targetType, "List<") ||
		strings.HasPrefix(targetType, "Set<") ||
		strings.HasPrefix(targetType, "Collection<") ||
		strings.HasSuffix(targetType, "[]")
}

// IsWrapper reports whether a target type boxes a primitive.
func IsWrapper(targetType string) bool {
	_, ok := wrapperTypes[targetType]
	return ok
}

// ValidationAnnotation returns the constraint for a non-nullable column:
// @NotBlank for strings, @NotNull otherwise. Nullable columns get none.
func (m *Mapper) ValidationAnnotation(sqlType string, nullable bool) string {
	if nullable {
		return ""
	}
	if m.TargetType(sqlType) == "String" {
		return "@NotBlank"
	}
	return "@NotNull"
}

// MapTypes maps each distinct column type to its target type.
func (m *Mapper) MapTypes(sqlTypes []string) map[string]string {
	out := make(map[string]string, len(sqlTypes))
	for _, t := range sqlTypes {
		if _, ok := out[t]; ok {
			continue
		}
		out[t] = m.TargetType(t)
	}
	return out
}

// baseType upper-cases a column type and drops any "(...)" parameters.
func baseType(sqlType string) string {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	if i := strings.Index(t, "("); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
