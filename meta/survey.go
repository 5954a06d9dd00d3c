package meta

import (
	"fmt"
	"reflect"
	"regexp"
)

var nameRx = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func panicf(format string, a ...any) {
	panic(fmt.Sprintf(format, a...))
}

func (s *Struct) setTable(table string) {
	if table == "" || s.Table == table {
		return
	}
	if s.Table != "" {
		panicf("conflicting table settings for struct %v: %s vs. %s", s.Type, s.Table, table)
	}
	if !nameRx.MatchString(table) {
		panicf("invalid table name for struct %v: %q", s.Type, table)
	}
	s.Table = table
}

// Survey produces a Struct describing a model type.
//
// Recognized tags:
//
//	meta.Meta `quarry:"table=users"`        struct-level table name
//	ID   quarry.RecordID `quarry:"id"`      identity field (string-based)
//	Email string `quarry:"unique"`          unique index "email"
//	Name  string `quarry:"index"`           non-unique index "name"
//	Age   uint32 `quarry:"index=name_age"`  part of compound index "name_age"
//	Cache []byte `quarry:"-"`               ignored
//
// Survey panics on malformed tags: they are programming errors.
func Survey(t reflect.Type) Struct {
	s := surveyInternal(t)
	if s.Table == "" {
		panicf("missing struct-level table setting in struct %v", s.Type)
	}
	if s.identity == noIdentity {
		panicf("missing identity field in struct %v", s)
	}
	s.Indices() // validates unique/non-unique agreement
	return s
}

func surveyInternal(t reflect.Type) Struct {
	if t.Kind() != reflect.Struct {
		panicf("%v expected to be a struct type", t)
	}

	n := t.NumField()
	s := Struct{
		Type:     t,
		Fields:   make([]Field, 0, n),
		identity: noIdentity,
	}
	goNames := map[string]bool{}

loop:
	for i := 0; i < n; i++ {
		f := t.Field(i)
		options := parseTag(f.Tag)
		switch {
		case f.Type == metaType:
			for _, opt := range options {
				switch opt.key {
				case "table=":
					s.setTable(opt.value)
				default:
					panicf("invalid struct-level option for %v: %s", t, opt)
				}
			}

		case f.Anonymous:
			for _, opt := range options {
				switch opt.key {
				case "-":
					if len(options) != 1 {
						panicf("option - for field %v.%s cannot be combined with other options", t, f.Name)
					}
					continue loop
				default:
					panicf("invalid option for %v.%s: %s", t, f.Name, opt)
				}
			}
			sub := surveyInternal(f.Type)
			s.setTable(sub.Table)
			if sub.identity != noIdentity {
				if s.identity != noIdentity {
					panicf("duplicate identity fields %v.%s and %v.%s",
						t, s.Fields[s.identity], t, sub.Fields[sub.identity])
				}
				s.identity = len(s.Fields) + sub.identity
			}
			for _, field := range sub.Fields {
				field.Index = append([]int{i}, field.Index...)
				if goNames[field.GoName] {
					panicf("duplicate field name %v.%s", t, field)
				}
				goNames[field.GoName] = true
				s.Fields = append(s.Fields, field)
			}

		default:
			field := Field{
				GoName: f.Name,
				Index:  f.Index,
				Type:   f.Type,
			}
			defaultName := SnakeCase(f.Name)
			for _, opt := range options {
				switch opt.key {
				case "-":
					if len(options) != 1 {
						panicf("option - for field %v.%s cannot be combined with other options", t, field)
					}
					continue loop
				case "id":
					if s.identity != noIdentity {
						panicf("duplicate identity fields %v.%s and %v.%s",
							t, s.Fields[s.identity], t, field)
					}
					if f.Type.Kind() != reflect.String {
						panicf("identity field %v.%s must be string-based", t, field)
					}
					s.identity = len(s.Fields)
				case "index", "unique":
					field.Indices = append(field.Indices, IndexRef{Name: defaultName, Unique: opt.key == "unique"})
				case "index=", "unique=":
					if !nameRx.MatchString(opt.value) {
						panicf("invalid index name for %v.%s: %q", t, field, opt.value)
					}
					field.Indices = append(field.Indices, IndexRef{Name: opt.value, Unique: opt.key == "unique="})
				default:
					panicf("invalid option for %v.%s: %s", t, field, opt)
				}
			}
			if !f.IsExported() {
				if len(field.Indices) > 0 || s.identity == len(s.Fields) {
					panicf("unexported field %v.%s cannot be indexed", t, field)
				}
				continue
			}
			goNames[field.GoName] = true
			s.Fields = append(s.Fields, field)
		}
	}

	return s
}
