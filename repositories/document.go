package repositories

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Document is one stored document.
type Document struct {
	ID        string
	Fields    map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode fills v from the document fields. The document id is exposed as "id".
func (d *Document) Decode(v interface{}) error {
	fields := make(map[string]interface{}, len(d.Fields)+1)
	for k, val := range d.Fields {
		fields[k] = val
	}
	fields["id"] = d.ID

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// ToFields converts a record into document fields. The "id" key is dropped
// because the id lives outside the document body.
func ToFields(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// Condition is an equality filter on a top-level field. Values are compared
// by their text form, so 3 and "3" match alike.
type Condition struct {
	Field string
	Value interface{}
}

// Query selects documents of one collection.
type Query struct {
	Where      []Condition
	OrderBy    string
	Descending bool
	Limit      int
}

// Where starts a query with one equality condition.
func Where(field string, value interface{}) Query {
	return Query{Where: []Condition{{Field: field, Value: value}}}
}

var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects field names that are not plain identifiers.
func (q Query) Validate() error {
	for _, c := range q.Where {
		if !fieldNameRe.MatchString(c.Field) {
			return fmt.Errorf("invalid field name %q", c.Field)
		}
	}
	if q.OrderBy != "" && !fieldNameRe.MatchString(q.OrderBy) {
		return fmt.Errorf("invalid order field %q", q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("invalid limit %d", q.Limit)
	}
	return nil
}

// TextValue renders a filter value the way the stores compare it.
func TextValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case float64:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprint(val)
	}
}
