package domain

type RelationshipType string

const (
	OneToOne   RelationshipType = "ONE_TO_ONE"
	OneToMany  RelationshipType = "ONE_TO_MANY"
	ManyToOne  RelationshipType = "MANY_TO_ONE"
	ManyToMany RelationshipType = "MANY_TO_MANY"
)

const defaultFKAction = "CASCADE"

type Schema struct {
	Tables        []Table        `json:"tables" yaml:"tables"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

type Table struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
	// Module nests the generated packages one level below the base package.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`
}

type Field struct {
	Name          string      `json:"name" yaml:"name"`
	Type          string      `json:"type" yaml:"type"`
	Length        *int        `json:"length,omitempty" yaml:"length,omitempty"`
	Precision     *int        `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale         *int        `json:"scale,omitempty" yaml:"scale,omitempty"`
	PrimaryKey    bool        `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	AutoIncrement bool        `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Nullable      *bool       `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique        bool        `json:"unique,omitempty" yaml:"unique,omitempty"`
	DefaultValue  any         `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	EnumValues    []string    `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	ForeignKey    *ForeignKey `json:"foreign_key,omitempty" yaml:"foreign_key,omitempty"`
}

// IsNullable defaults to true when the flag was not given.
func (f Field) IsNullable() bool {
	return f.Nullable == nil || *f.Nullable
}

type ForeignKey struct {
	Table    string `json:"table" yaml:"table"`
	Column   string `json:"column" yaml:"column"`
	OnDelete string `json:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate string `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}

func (fk ForeignKey) DeleteAction() string {
	if fk.OnDelete == "" {
		return defaultFKAction
	}
	return fk.OnDelete
}

func (fk ForeignKey) UpdateAction() string {
	if fk.OnUpdate == "" {
		return defaultFKAction
	}
	return fk.OnUpdate
}

type Relationship struct {
	Type     RelationshipType `json:"type" yaml:"type" enum:"ONE_TO_ONE,ONE_TO_MANY,MANY_TO_ONE,MANY_TO_MANY"`
	From     string           `json:"from" yaml:"from"`
	To       string           `json:"to" yaml:"to"`
	MappedBy string           `json:"mapped_by,omitempty" yaml:"mapped_by,omitempty"`
}
