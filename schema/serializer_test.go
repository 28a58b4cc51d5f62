package schema

import (
	"reflect"
	"testing"
)

func TestSerializeCreateClass(t *testing.T) {
	tests := []struct {
		name  string
		class ClassDefinition
		want  string
	}{
		{
			name:  "plain",
			class: ClassDefinition{Name: "Person"},
			want:  "CREATE CLASS Person",
		},
		{
			name:  "extends",
			class: ClassDefinition{Name: "Person", SuperClass: "V"},
			want:  "CREATE CLASS Person EXTENDS V",
		},
		{
			name:  "abstract",
			class: ClassDefinition{Name: "Named", SuperClass: "V", Abstract: true},
			want:  "CREATE CLASS Named EXTENDS V ABSTRACT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SerializeCreateClass(&tt.class); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeCreateProperty(t *testing.T) {
	tests := []struct {
		name string
		prop PropertyDefinition
		want string
	}{
		{
			name: "plain",
			prop: PropertyDefinition{Name: "name", Type: TypeString},
			want: "CREATE PROPERTY Person.name STRING",
		},
		{
			name: "constraints",
			prop: PropertyDefinition{
				Name: "age", Type: TypeInteger,
				Mandatory: true, NotNull: true, Min: "0", Max: "150",
			},
			want: "CREATE PROPERTY Person.age INTEGER (MANDATORY TRUE, NOTNULL TRUE, MIN 0, MAX 150)",
		},
		{
			name: "link",
			prop: PropertyDefinition{Name: "bestFriend", Type: TypeLink, LinkedClass: "Person"},
			want: "CREATE PROPERTY Person.bestFriend LINK Person",
		},
		{
			name: "typed collection",
			prop: PropertyDefinition{Name: "tags", Type: TypeEmbeddedList, LinkedType: TypeString},
			want: "CREATE PROPERTY Person.tags EMBEDDEDLIST STRING",
		},
		{
			name: "regexp and default",
			prop: PropertyDefinition{
				Name: "email", Type: TypeString,
				Regexp: `.+@.+`, Default: "none",
			},
			want: `CREATE PROPERTY Person.email STRING (REGEXP ".+@.+", DEFAULT "none")`,
		},
		{
			name: "readonly numeric default",
			prop: PropertyDefinition{Name: "score", Type: TypeDouble, ReadOnly: true, Default: 1.5},
			want: "CREATE PROPERTY Person.score DOUBLE (READONLY TRUE, DEFAULT 1.5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SerializeCreateProperty("Person", &tt.prop); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeAlterProperty(t *testing.T) {
	old := PropertyDefinition{Name: "name", Type: TypeString}
	updated := PropertyDefinition{
		Name: "name", Type: TypeString,
		Mandatory: true, Max: "64", Regexp: "[a-z]+",
	}

	got := SerializeAlterProperty("Person", &old, &updated)
	want := []string{
		"ALTER PROPERTY Person.name MANDATORY TRUE",
		"ALTER PROPERTY Person.name MAX 64",
		`ALTER PROPERTY Person.name REGEXP "[a-z]+"`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSerializeAlterPropertyClearsConstraints(t *testing.T) {
	old := PropertyDefinition{Name: "name", Type: TypeString, Max: "64", Regexp: "[a-z]+", Default: "x"}
	updated := PropertyDefinition{Name: "name", Type: TypeString}

	got := SerializeAlterProperty("Person", &old, &updated)
	want := []string{
		"ALTER PROPERTY Person.name MAX NULL",
		"ALTER PROPERTY Person.name REGEXP NULL",
		"ALTER PROPERTY Person.name DEFAULT NULL",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSerializeAlterPropertyTypeChange(t *testing.T) {
	old := PropertyDefinition{Name: "age", Type: TypeShort}
	updated := PropertyDefinition{Name: "age", Type: TypeLong}

	got := SerializeAlterProperty("Person", &old, &updated)
	if len(got) != 1 || got[0] != "ALTER PROPERTY Person.age TYPE LONG" {
		t.Errorf("got %v, want single TYPE statement", got)
	}
}

func TestSerializeCreateIndex(t *testing.T) {
	tests := []struct {
		name  string
		index IndexDefinition
		want  string
	}{
		{
			name: "single field",
			index: IndexDefinition{
				Name: "Person.name", Class: "Person",
				Type: IndexNotUnique, Fields: []string{"name"},
			},
			want: "CREATE INDEX Person.name ON Person (name) NOTUNIQUE",
		},
		{
			name: "composite",
			index: IndexDefinition{
				Name: "Person.city_street", Class: "Person",
				Type: IndexUnique, Fields: []string{"city", "street"},
			},
			want: "CREATE INDEX Person.city_street ON Person (city, street) UNIQUE",
		},
		{
			name:  "manual",
			index: IndexDefinition{Name: "dictionary", Type: IndexDictionary},
			want:  "CREATE INDEX dictionary DICTIONARY",
		},
		{
			name: "hash",
			index: IndexDefinition{
				Name: "Person.email", Class: "Person",
				Type: IndexUniqueHash, Fields: []string{"email"},
			},
			want: "CREATE INDEX Person.email ON Person (email) UNIQUE_HASH_INDEX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SerializeCreateIndex(&tt.index); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeDropStatements(t *testing.T) {
	if got := SerializeDropClass("Person"); got != "DROP CLASS Person" {
		t.Errorf("drop class = %q", got)
	}
	if got := SerializeDropProperty("Person", "name"); got != "DROP PROPERTY Person.name" {
		t.Errorf("drop property = %q", got)
	}
	if got := SerializeDropIndex("Person.name"); got != "DROP INDEX Person.name" {
		t.Errorf("drop index = %q", got)
	}
}

func TestSerializeClass(t *testing.T) {
	class := ClassDefinition{
		Name:       "Person",
		SuperClass: "V",
		Properties: []PropertyDefinition{
			{Name: "name", Type: TypeString, Mandatory: true},
		},
		Indexes: []IndexDefinition{
			{Name: "Person.name", Class: "Person", Type: IndexUnique, Fields: []string{"name"}},
		},
	}

	got := SerializeClass(&class)
	want := []string{
		"CREATE CLASS Person EXTENDS V",
		"CREATE PROPERTY Person.name STRING (MANDATORY TRUE)",
		"CREATE INDEX Person.name ON Person (name) UNIQUE",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSerializeDiff(t *testing.T) {
	local := &SchemaDefinition{Classes: []ClassDefinition{
		{
			Name:       "Animal",
			Properties: []PropertyDefinition{{Name: "species", Type: TypeString}},
		},
		{
			Name: "Person",
			Properties: []PropertyDefinition{
				{Name: "name", Type: TypeString, Mandatory: true},
			},
		},
	}}
	server := &SchemaDefinition{Classes: []ClassDefinition{
		{
			Name: "Person",
			Properties: []PropertyDefinition{
				{Name: "name", Type: TypeString},
				{Name: "age", Type: TypeInteger},
			},
		},
		{Name: "Relic"},
	}}

	statements := SerializeDiff(CompareSchemas(local, server))
	want := []string{
		"CREATE CLASS Animal",
		"CREATE PROPERTY Animal.species STRING",
		"ALTER PROPERTY Person.name MANDATORY TRUE",
		"DROP PROPERTY Person.age",
		"DROP CLASS Relic",
	}
	if !reflect.DeepEqual(statements, want) {
		t.Errorf("got %v, want %v", statements, want)
	}
}

func TestSerializeDiffEmpty(t *testing.T) {
	diff := CompareSchemas(&SchemaDefinition{}, &SchemaDefinition{})
	if statements := SerializeDiff(diff); len(statements) != 0 {
		t.Errorf("expected no statements, got %v", statements)
	}
}
