package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Typed field accessors with coercion for the common cases a caller meets
// when reading query projections: servers return INTEGER where the caller
// wants int64, STRING where the caller wants a number, and so on.

// FieldAsString converts a field to a string. Absent and nil fields
// convert to the empty string.
func (d *Document) FieldAsString(name string) string {
	value := d.fields[name]
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return v.Format(time.RFC3339)
	case decimal.Decimal:
		return v.String()
	case RID:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FieldAsInt converts a field to an int64
func (d *Document) FieldAsInt(name string) (int64, error) {
	value := d.fields[name]
	if value == nil {
		return 0, fmt.Errorf("cannot convert nil field %q to int", name)
	}
	switch v := value.(type) {
	case byte:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case decimal.Decimal:
		return v.IntPart(), nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to int: %w", v, err)
		}
		return i, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// FieldAsFloat converts a field to a float64
func (d *Document) FieldAsFloat(name string) (float64, error) {
	value := d.fields[name]
	if value == nil {
		return 0, fmt.Errorf("cannot convert nil field %q to float", name)
	}
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case byte:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to float: %w", v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", value)
	}
}

// FieldAsBool converts a field to a boolean
func (d *Document) FieldAsBool(name string) (bool, error) {
	value := d.fields[name]
	if value == nil {
		return false, nil
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case byte:
		return v != 0, nil
	case int16:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		switch v {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off", "":
			return false, nil
		default:
			return false, fmt.Errorf("cannot convert '%s' to boolean", v)
		}
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

// FieldAsTime converts a field to a time.Time. Integer values are read as
// milliseconds since the epoch, matching the wire encoding of DATETIME.
func (d *Document) FieldAsTime(name string) (time.Time, error) {
	value := d.fields[name]
	if value == nil {
		return time.Time{}, fmt.Errorf("cannot convert nil field %q to datetime", name)
	}
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case int32:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse '%s' as datetime", v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", value)
	}
}

// FieldAsRID converts a field to a record id, accepting LINK values and the
// #cluster:position string notation
func (d *Document) FieldAsRID(name string) (RID, error) {
	value := d.fields[name]
	if value == nil {
		return RID{}, fmt.Errorf("cannot convert nil field %q to record id", name)
	}
	switch v := value.(type) {
	case RID:
		return v, nil
	case string:
		return ParseRID(v)
	default:
		return RID{}, fmt.Errorf("cannot convert %T to record id", value)
	}
}

// FieldAsDocument returns an embedded document field
func (d *Document) FieldAsDocument(name string) (*Document, error) {
	value := d.fields[name]
	if value == nil {
		return nil, fmt.Errorf("field %q is not set", name)
	}
	doc, ok := value.(*Document)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to document", value)
	}
	return doc, nil
}
