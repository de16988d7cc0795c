package feed

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Marshaler serializes flat record structs into feed rows. Columns come
// from `order` and `header` struct tags; the header field order is
// authoritative and every data row matches its arity by construction.
type Marshaler struct {
	structType reflect.Type
	headers    []string
	fieldIdx   []int
}

type column struct {
	order    int
	header   string
	fieldIdx int
}

// NewMarshaler build a Marshaler from a record prototype
func NewMarshaler(prototype interface{}) (*Marshaler, error) {
	tp := reflect.TypeOf(prototype)
	for tp.Kind() == reflect.Ptr {
		tp = tp.Elem()
	}
	if tp.Kind() != reflect.Struct {
		return nil, errors.Errorf("record prototype must be a struct, got:%v", tp.Kind())
	}
	columns := make([]column, 0, tp.NumField())
	seen := make(map[int]string)
	for i := 0; i < tp.NumField(); i++ {
		tf := tp.Field(i)
		ord := tf.Tag.Get("order")
		if ord == "" {
			continue
		}
		idx, err := strconv.Atoi(ord)
		if err != nil || idx < 0 {
			return nil, errors.Errorf("invalid order tag on field:%v", tf.Name)
		}
		if prev, ok := seen[idx]; ok {
			return nil, errors.Errorf("duplicate order:%v on fields %v and %v", idx, prev, tf.Name)
		}
		seen[idx] = tf.Name
		header := tf.Name
		if h := tf.Tag.Get("header"); h != "" {
			header = h
		}
		columns = append(columns, column{order: idx, header: header, fieldIdx: i})
	}
	if len(columns) == 0 {
		return nil, errors.Errorf("record prototype %v has no order-tagged fields", tp.Name())
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].order < columns[j].order })
	m := &Marshaler{structType: tp}
	for _, col := range columns {
		m.headers = append(m.headers, col.header)
		m.fieldIdx = append(m.fieldIdx, col.fieldIdx)
	}
	return m, nil
}

// Header ordered column names
func (m *Marshaler) Header() []string {
	out := make([]string, len(m.headers))
	copy(out, m.headers)
	return out
}

// Marshal one record into its ordered field values
func (m *Marshaler) Marshal(record interface{}) ([]string, error) {
	val := reflect.ValueOf(record)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, errors.New("record is nil")
		}
		val = val.Elem()
	}
	if val.Type() != m.structType {
		return nil, errors.Errorf("record type mismatch, want:%v got:%v", m.structType, val.Type())
	}
	fields := make([]string, len(m.fieldIdx))
	for i, idx := range m.fieldIdx {
		str, err := formatVal(val.Field(idx), m.structType.Field(idx).Tag)
		if err != nil {
			return nil, errors.Errorf("format field:%v err:%v", m.structType.Field(idx).Name, err)
		}
		fields[i] = str
	}
	return fields, nil
}

// FormatHeader the header row in the feed's on-disk encoding
func (m *Marshaler) FormatHeader() (string, error) {
	return encodeRows([][]string{m.headers})
}

// FormatRows a batch of records in the feed's on-disk encoding
func (m *Marshaler) FormatRows(records []interface{}) (string, error) {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		fields, err := m.Marshal(record)
		if err != nil {
			return "", err
		}
		rows = append(rows, fields)
	}
	return encodeRows(rows)
}

func encodeRows(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatVal(vf reflect.Value, tag reflect.StructTag) (string, error) {
	for vf.Kind() == reflect.Ptr {
		if vf.IsNil() {
			return tag.Get("default"), nil
		}
		vf = vf.Elem()
	}
	format := tag.Get("format")
	switch vf.Kind() {
	case reflect.String:
		return vf.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if format != "" {
			return fmt.Sprintf(format, vf.Interface()), nil
		}
		return fmt.Sprintf("%v", vf.Interface()), nil
	case reflect.Bool:
		if vf.Bool() {
			return "true", nil
		}
		return "false", nil
	case reflect.Struct:
		if tm, ok := vf.Interface().(time.Time); ok {
			if format != "" {
				return tm.Format(format), nil
			}
			return tm.Format("2006-01-02"), nil
		}
	}
	return "", errors.Errorf("can not format kind:%v", vf.Kind())
}
