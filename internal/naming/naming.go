// Package naming converts identifiers between the casing and pluralization
// conventions used by generated sources, SQL schemas and plan identifiers.
package naming

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	delimiters      = regexp.MustCompile(`[_\-\s]+`)
	spaceOrHyphen   = regexp.MustCompile(`[\s-]+`)
	lowerThenUpper  = regexp.MustCompile(`([a-z])([A-Z])`)
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	planIDUnsafe    = regexp.MustCompile(`[^a-z0-9]+`)
)

var targetKeywords = toSet(
	"abstract", "assert", "boolean", "break", "byte", "case", "catch", "char",
	"class", "const", "continue", "default", "do", "double", "else", "enum",
	"extends", "final", "finally", "float", "for", "goto", "if", "implements",
	"import", "instanceof", "int", "interface", "long", "native", "new", "package",
	"private", "protected", "public", "return", "short", "static", "strictfp",
	"super", "switch", "synchronized", "this", "throw", "throws", "transient",
	"try", "void", "volatile", "while", "true", "false", "null",
)

var sqlKeywords = toSet(
	"user", "order", "group", "table", "column", "index", "key", "primary",
	"foreign", "references", "check", "default", "unique", "not", "null",
)

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"tooth":  "teeth",
	"foot":   "feet",
	"mouse":  "mice",
	"goose":  "geese",
}

var irregularSingulars = invert(irregularPlurals)

// CamelCase converts snake, kebab or space delimited input to camelCase.
// Input without delimiters only has its first rune lowered.
func CamelCase(s string) string {
	if s == "" {
		return s
	}
	if !strings.ContainsAny(s, "_- ") {
		return lowerFirst(s)
	}
	parts := delimiters.Split(strings.ToLower(s), -1)
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(title(p))
	}
	return b.String()
}

// PascalCase converts input to PascalCase: user_profile -> UserProfile.
func PascalCase(s string) string {
	return upperFirst(CamelCase(s))
}

// SnakeCase converts input to snake_case: userName -> user_name.
func SnakeCase(s string) string {
	if s == "" {
		return s
	}
	if strings.Contains(s, "_") && !strings.Contains(s, "-") && s == strings.ToLower(s) {
		return s
	}
	out := spaceOrHyphen.ReplaceAllString(s, "_")
	out = lowerThenUpper.ReplaceAllString(out, "${1}_${2}")
	return strings.ToLower(out)
}

// ConstCase converts input to UPPER_SNAKE_CASE.
func ConstCase(s string) string {
	return strings.ToUpper(SnakeCase(s))
}

// KebabCase converts input to kebab-case.
func KebabCase(s string) string {
	return strings.ReplaceAll(SnakeCase(s), "_", "-")
}

// DotCase converts input to dot.case.
func DotCase(s string) string {
	return strings.ReplaceAll(SnakeCase(s), "_", ".")
}

// Pluralize applies simple English pluralization rules.
func Pluralize(word string) string {
	if word == "" {
		return word
	}
	lower := strings.ToLower(word)
	if irr, ok := irregularPlurals[lower]; ok {
		return matchFirstCase(word, irr)
	}
	switch {
	case hasAnySuffix(lower, "s", "sh", "ch", "x", "z"):
		return word + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "f"):
		return word[:len(word)-1] + "ves"
	case strings.HasSuffix(lower, "fe"):
		return word[:len(word)-2] + "ves"
	case strings.HasSuffix(lower, "o") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return word + "es"
	}
	return word + "s"
}

// Singularize reverses Pluralize for the common suffix forms.
func Singularize(word string) string {
	if word == "" {
		return word
	}
	lower := strings.ToLower(word)
	if irr, ok := irregularSingulars[lower]; ok {
		return matchFirstCase(word, irr)
	}
	switch {
	case strings.HasSuffix(lower, "ies"):
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "ves"):
		return word[:len(word)-3] + "f"
	case hasAnySuffix(lower, "oes", "xes", "ches", "shes", "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return word[:len(word)-1]
	}
	return word
}

// TypeNameFromTable strips tbl_/tab_ prefixes, singularizes and PascalCases
// a table name: tbl_order_items -> OrderItem.
func TypeNameFromTable(table string) string {
	if table == "" {
		return table
	}
	cleaned := table
	if strings.HasPrefix(cleaned, "tbl_") || strings.HasPrefix(cleaned, "tab_") {
		cleaned = cleaned[4:]
	}
	return PascalCase(Singularize(cleaned))
}

// TableNameFromType is the inverse of TypeNameFromTable: OrderItem -> order_items.
func TableNameFromType(typeName string) string {
	if typeName == "" {
		return typeName
	}
	return Pluralize(SnakeCase(typeName))
}

// EscapeKeyword appends an underscore to reserved words of the target language.
func EscapeKeyword(name string) string {
	if _, ok := targetKeywords[strings.ToLower(name)]; ok {
		return name + "_"
	}
	return name
}

// EscapeSQLKeyword double-quotes reserved SQL words.
func EscapeSQLKeyword(name string) string {
	if _, ok := sqlKeywords[strings.ToLower(name)]; ok {
		return `"` + name + `"`
	}
	return name
}

// GetterName returns the accessor name for a field. Boolean fields use the
// is prefix unless they already start with is, has or can.
func GetterName(field, fieldType string) string {
	if field == "" {
		return field
	}
	if strings.EqualFold(fieldType, "boolean") {
		if strings.HasPrefix(field, "is") || strings.HasPrefix(field, "has") || strings.HasPrefix(field, "can") {
			return field
		}
		return "is" + upperFirst(field)
	}
	return "get" + upperFirst(field)
}

// SetterName returns the mutator name for a field, dropping a leading is
// from boolean style names: isActive -> setActive.
func SetterName(field string) string {
	if field == "" {
		return field
	}
	clean := field
	if len(field) > 2 && strings.HasPrefix(field, "is") {
		if r, _ := utf8.DecodeRuneInString(field[2:]); unicode.IsUpper(r) {
			clean = lowerFirst(field[2:])
		}
	}
	return "set" + upperFirst(clean)
}

// PackageName joins a base package and a module segment.
func PackageName(base, module string) string {
	switch {
	case base == "":
		return strings.ToLower(module)
	case module == "":
		return base
	}
	return base + "." + strings.ToLower(module)
}

// PackagePath converts a dotted package into a slash separated path.
func PackagePath(pkg string) string {
	return strings.ReplaceAll(pkg, ".", "/")
}

// CleanIdentifier replaces runs of non-alphanumerics with underscores, trims
// them from the ends and prefixes n when the result starts with a digit.
func CleanIdentifier(s string) string {
	if s == "" {
		return s
	}
	out := nonAlphanumeric.ReplaceAllString(s, "_")
	out = strings.Trim(out, "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "n" + out
	}
	return out
}

// APIPath derives a kebab-case plural resource path: UserProfile -> /user-profiles.
func APIPath(typeName string) string {
	if typeName == "" {
		return "/"
	}
	return "/" + Pluralize(KebabCase(typeName))
}

// VariableName lowers the first rune of a type name: UserService -> userService.
func VariableName(typeName string) string {
	return lowerFirst(typeName)
}

// NormalizeID lowercases an identifier, collapses every run of characters
// outside [a-z0-9] into a single hyphen and trims hyphens from the ends.
func NormalizeID(id string) string {
	out := planIDUnsafe.ReplaceAllString(strings.ToLower(id), "-")
	return strings.Trim(out, "-")
}

func title(s string) string {
	// Casers hold state and must not be shared across goroutines.
	return cases.Title(language.Und, cases.NoLower).String(s)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func matchFirstCase(original, replacement string) string {
	r, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(r) {
		return upperFirst(replacement)
	}
	return replacement
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
