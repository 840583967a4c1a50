package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"setflow/internal/core/entity"
	"setflow/internal/core/id"
	"setflow/internal/core/types"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	idType    = reflect.TypeOf(id.ID{})
	moneyType = reflect.TypeOf(types.Money{})
	filesType = reflect.TypeOf(entity.Files{})
)

// readOnly fields are set by the server.
var readOnly = map[string]bool{
	"id": true, "version": true, "createdAt": true, "updatedAt": true,
	"createdBy": true, "updatedBy": true, "deletionMark": true, "number": true,
}

// Inspect walks v's exported fields, flattening embedded structs, and
// describes them by their json names.
func Inspect(v any, name string, typ EntityType) EntityDef {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name == "" {
		name = t.Name()
	}
	def := EntityDef{Name: name, Label: Label(name), Type: typ}
	inspectStruct(t, &def)
	return def
}

func inspectStruct(t reflect.Type, def *EntityDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			inspectStruct(field.Type, def)
			continue
		}
		name := jsonName(field)
		if name == "-" {
			continue
		}
		fd := FieldDef{
			Name:     name,
			Label:    Label(field.Name),
			ReadOnly: readOnly[name],
			Required: strings.Contains(field.Tag.Get("binding"), "required"),
		}
		mapFieldType(&fd, field)
		def.Fields = append(def.Fields, fd)
	}
}

func mapFieldType(fd *FieldDef, field reflect.StructField) {
	t := field.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case idType:
		fd.Type = TypeReference
		return
	case timeType:
		fd.Type = TypeDate
		return
	case moneyType:
		fd.Type = TypeMoney
		return
	case filesType:
		fd.Type = TypeFiles
		return
	}

	// "categoryId" -> reference to "category"
	if t.Kind() == reflect.String && strings.HasSuffix(field.Name, "ID") && field.Name != "ID" {
		fd.Type = TypeReference
		fd.ReferenceType = strings.ToLower(strings.TrimSuffix(field.Name, "ID"))
		return
	}

	switch t.Kind() {
	case reflect.String:
		fd.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fd.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		fd.Type = TypeNumber
	case reflect.Bool:
		fd.Type = TypeBoolean
	case reflect.Map, reflect.Struct, reflect.Slice:
		fd.Type = TypeObject
	default:
		fd.Type = TypeString
	}
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// Label splits a Go identifier into words: "PurchaseDate" -> "Purchase date",
// "CategoryID" -> "Category ID".
func Label(name string) string {
	runes := []rune(name)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevLower := unicode.IsLower(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))

	for i := 1; i < len(words); i++ {
		if w := words[i]; strings.ToUpper(w) != w || len(w) == 1 {
			words[i] = strings.ToLower(w)
		}
	}
	return strings.Join(words, " ")
}
