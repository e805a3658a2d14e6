// Package codec turns a list of field values into the composite key and the
// flat value stored for a record.
//
// The key is the primary-key values in the table's declared key order, the
// value is every other field in the order the caller supplied it, both joined
// with Separator. Decoding is positional: field names are not stored.
package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"minidbms/catalog"
	"minidbms/common"
)

// Separator joins key parts and value parts.
const Separator = "#"

const dateLayout = "2006-01-02"

// Field is one column value as supplied by the client.
type Field struct {
	Name  string
	Value string
}

// Encode validates fields against t and builds the record's key and value.
func Encode(t *catalog.Table, fields []Field) (key, value string, err error) {
	byName := make(map[string]string, len(fields))
	var unknown []string
	for _, f := range fields {
		if t.Column(f.Name) == nil {
			unknown = append(unknown, f.Name)
			continue
		}
		if _, dup := byName[f.Name]; dup {
			return "", "", common.Errorf(common.KindInvalidValue, "Error: Field '%s' given more than once.", f.Name)
		}
		byName[f.Name] = f.Value
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return "", "", common.Errorf(common.KindUnknownField,
			"Error: Invalid field(s) %s for table '%s'.", strings.Join(unknown, ", "), t.Name)
	}

	var missing []string
	keyParts := make([]string, 0, len(t.PrimaryKey))
	for _, pk := range t.PrimaryKey {
		v, ok := byName[pk]
		if !ok {
			missing = append(missing, pk)
			continue
		}
		keyParts = append(keyParts, v)
	}
	if len(missing) > 0 {
		return "", "", common.Errorf(common.KindMissingKeyField,
			"Error: Missing primary key value(s) %s for table '%s'.", strings.Join(missing, ", "), t.Name)
	}

	for _, col := range t.Columns {
		v, ok := byName[col.Name]
		if !ok {
			if !col.Nullable {
				return "", "", common.Errorf(common.KindInvalidValue, "Error: Column '%s' cannot be null.", col.Name)
			}
			continue
		}
		if err := checkValue(col, v, t.IsPrimaryKey(col.Name)); err != nil {
			return "", "", err
		}
	}

	valueParts := make([]string, 0, len(fields))
	for _, f := range fields {
		if !t.IsPrimaryKey(f.Name) {
			valueParts = append(valueParts, f.Value)
		}
	}
	return strings.Join(keyParts, Separator), strings.Join(valueParts, Separator), nil
}

func checkValue(col catalog.Column, v string, isKey bool) error {
	if strings.Contains(v, Separator) {
		return common.Errorf(common.KindInvalidValue, "Error: Value for '%s' may not contain '%s'.", col.Name, Separator)
	}
	if v == "" {
		if isKey {
			return common.Errorf(common.KindInvalidValue, "Error: Primary key column '%s' cannot be empty.", col.Name)
		}
		if !col.Nullable {
			return common.Errorf(common.KindInvalidValue, "Error: Column '%s' cannot be null.", col.Name)
		}
		return nil
	}

	var err error
	switch col.Type {
	case catalog.TypeInt:
		_, err = strconv.ParseInt(v, 10, 64)
	case catalog.TypeFloat:
		_, err = strconv.ParseFloat(v, 64)
	case catalog.TypeBool:
		_, err = strconv.ParseBool(v)
	case catalog.TypeDate:
		_, err = time.Parse(dateLayout, v)
	case catalog.TypeVarchar, catalog.TypeChar:
		if col.Length > 0 && utf8.RuneCountInString(v) > col.Length {
			err = fmt.Errorf("longer than %d", col.Length)
		}
	}
	if err != nil {
		return common.Errorf(common.KindInvalidValue, "Error: Invalid %s value '%s' for column '%s'.", col.Type, v, col.Name)
	}
	return nil
}

// Decode splits a stored record back into fields for display. Key parts get
// their primary-key column names; value parts are positional ($1, $2, ...).
func Decode(t *catalog.Table, key, value string) []Field {
	fields := make([]Field, 0, len(t.Columns))
	keyParts := strings.Split(key, Separator)
	for i, part := range keyParts {
		name := fmt.Sprintf("$k%d", i+1)
		if i < len(t.PrimaryKey) {
			name = t.PrimaryKey[i]
		}
		fields = append(fields, Field{Name: name, Value: part})
	}
	if value == "" {
		return fields
	}
	for i, part := range strings.Split(value, Separator) {
		fields = append(fields, Field{Name: fmt.Sprintf("$%d", i+1), Value: part})
	}
	return fields
}

// Format renders fields as "name=value" pairs.
func Format(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + "=" + f.Value
	}
	return strings.Join(parts, ", ")
}
