package validation

import (
	"strings"

	"github.com/BearBump/trackgen/internal/models"
)

// Errors collects field-level validation messages.
type Errors struct {
	Fields map[string][]string
}

func (e *Errors) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *Errors) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

func (e *Errors) Len() int {
	return len(e.Fields)
}

// Error lists fields in request order so messages are stable.
func (e *Errors) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for _, f := range models.RequestFields {
		msgs, ok := e.Fields[f]
		if !ok {
			continue
		}
		b.WriteString("; ")
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(strings.Join(msgs, " "))
	}
	return b.String()
}
