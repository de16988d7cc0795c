package feed

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
)

func parseCSV(t *testing.T, text string) [][]string {
	rows, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

type testRecord struct {
	ID    int64   `order:"0" header:"id"`
	Name  string  `order:"1" header:"name"`
	Price float64 `order:"2" header:"price" format:"%.2f"`
	Note  string  `order:"3" header:"note"`
}

func TestNewMarshaler(t *testing.T) {
	m, err := NewMarshaler(&testRecord{})
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"id", "name", "price", "note"}, m.Header())

	_, err = NewMarshaler("not a struct")
	assert.NotEqual(t, nil, err)

	_, err = NewMarshaler(&struct{ A string }{})
	assert.NotEqual(t, nil, err)

	_, err = NewMarshaler(&struct {
		A string `order:"0"`
		B string `order:"0"`
	}{})
	assert.NotEqual(t, nil, err)
}

func TestMarshaler_Marshal(t *testing.T) {
	m, err := NewMarshaler(&testRecord{})
	assert.Equal(t, nil, err)

	fields, err := m.Marshal(&testRecord{ID: 7, Name: "widget", Price: 12.5, Note: "plain"})
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"7", "widget", "12.50", "plain"}, fields)

	_, err = m.Marshal("wrong type")
	assert.NotEqual(t, nil, err)
}

func TestMarshaler_HeaderRowArity(t *testing.T) {
	m, err := NewMarshaler(&testRecord{})
	assert.Equal(t, nil, err)

	records := []interface{}{
		&testRecord{ID: 1, Name: "a,b", Price: 1, Note: `has "quotes"`},
		&testRecord{ID: 2, Name: "line\nbreak", Price: 2.125, Note: ""},
	}
	header, err := m.FormatHeader()
	assert.Equal(t, nil, err)
	body, err := m.FormatRows(records)
	assert.Equal(t, nil, err)

	parsed := parseCSV(t, header+body)
	arity := len(parsed[0])
	for _, row := range parsed {
		assert.Equal(t, arity, len(row))
	}
	assert.Equal(t, 3, len(parsed))
	assert.Equal(t, "a,b", parsed[1][1])
	assert.Equal(t, `has "quotes"`, parsed[1][3])
	assert.Equal(t, "line\nbreak", parsed[2][1])
	assert.Equal(t, "2.12", parsed[2][2])
}

func TestMarshaler_FormatRowsOrder(t *testing.T) {
	m, err := NewMarshaler(&testRecord{})
	assert.Equal(t, nil, err)

	body, err := m.FormatRows([]interface{}{
		&testRecord{ID: 1, Name: "first", Price: 1},
		&testRecord{ID: 2, Name: "second", Price: 2},
		&testRecord{ID: 3, Name: "third", Price: 3},
	})
	assert.Equal(t, nil, err)
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	assert.Equal(t, 3, len(lines))
	assert.Equal(t, true, strings.HasPrefix(lines[0], "1,"))
	assert.Equal(t, true, strings.HasPrefix(lines[2], "3,"))
}
