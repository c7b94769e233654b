package heap

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/duskdb/duskdb/internal/catalog"
)

// encodeRecord serializes rec against schema into a flat byte slice using
// the binary layout from spec.md §6: INT/FLOAT/BOOL natural width,
// VARCHAR as a 4-byte length prefix followed by UTF-8 bytes.
func encodeRecord(schema []catalog.Column, rec Record) ([]byte, error) {
	size, err := recordSize(schema, rec)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	off := 0
	for i, col := range schema {
		v := rec[i]
		switch col.Type {
		case catalog.Int:
			n, ok := toInt32(v)
			if !ok {
				return nil, fmt.Errorf("heap: column %q expects INT, got %T", col.Name, v)
			}
			binary.LittleEndian.PutUint32(buf[off:], uint32(n))
			off += 4
		case catalog.Float:
			f, ok := toFloat32(v)
			if !ok {
				return nil, fmt.Errorf("heap: column %q expects FLOAT, got %T", col.Name, v)
			}
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		case catalog.Bool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("heap: column %q expects BOOL, got %T", col.Name, v)
			}
			if b {
				buf[off] = 1
			} else {
				buf[off] = 0
			}
			off++
		case catalog.Varchar:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("heap: column %q expects VARCHAR, got %T", col.Name, v)
			}
			binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
			off += 4
			copy(buf[off:], s)
			off += len(s)
		default:
			return nil, fmt.Errorf("heap: unsupported column type %q", col.Type)
		}
	}
	return buf, nil
}

// decodeRecord reads one record from buf starting at off, returning the
// record and the offset just past it. A malformed length prefix or a span
// exceeding buf aborts with a descriptive error (heap: corrupt record),
// matching §4.3's "corrupt record (deserialization exception)" failure mode.
func decodeRecord(schema []catalog.Column, buf []byte, off int) (Record, int, error) {
	rec := make(Record, len(schema))
	for i, col := range schema {
		switch col.Type {
		case catalog.Int:
			if off+4 > len(buf) {
				return nil, 0, fmt.Errorf("heap: corrupt record: truncated INT for column %q", col.Name)
			}
			rec[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		case catalog.Float:
			if off+4 > len(buf) {
				return nil, 0, fmt.Errorf("heap: corrupt record: truncated FLOAT for column %q", col.Name)
			}
			rec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		case catalog.Bool:
			if off+1 > len(buf) {
				return nil, 0, fmt.Errorf("heap: corrupt record: truncated BOOL for column %q", col.Name)
			}
			rec[i] = buf[off] != 0
			off++
		case catalog.Varchar:
			if off+4 > len(buf) {
				return nil, 0, fmt.Errorf("heap: corrupt record: truncated VARCHAR length for column %q", col.Name)
			}
			n := int(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
			if n < 0 || off+n > len(buf) {
				return nil, 0, fmt.Errorf("heap: corrupt record: VARCHAR length %d out of bounds for column %q", n, col.Name)
			}
			rec[i] = string(buf[off : off+n])
			off += n
		default:
			return nil, 0, fmt.Errorf("heap: unsupported column type %q", col.Type)
		}
	}
	return rec, off, nil
}

// encodeColumnDescriptors serializes the header page's column block: per
// column, int16 name_len, name_bytes, int16 type_len, type_bytes. The
// column_count itself lives in its own header field (offset 12, §3) and is
// not repeated here.
func encodeColumnDescriptors(schema []catalog.Column) []byte {
	var buf []byte
	for _, col := range schema {
		nameB := []byte(col.Name)
		typeB := []byte(col.TypeString())
		var l16 [2]byte

		binary.LittleEndian.PutUint16(l16[:], uint16(len(nameB)))
		buf = append(buf, l16[:]...)
		buf = append(buf, nameB...)

		binary.LittleEndian.PutUint16(l16[:], uint16(len(typeB)))
		buf = append(buf, l16[:]...)
		buf = append(buf, typeB...)
	}
	return buf
}

// decodeColumnDescriptors parses count column descriptors from buf, which
// must start at the first descriptor (header page offset 16, §3).
func decodeColumnDescriptors(buf []byte, count int) ([]catalog.Column, error) {
	off := 0
	cols := make([]catalog.Column, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("heap: corrupt header: truncated name length for column %d", i)
		}
		nameLen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+nameLen > len(buf) {
			return nil, fmt.Errorf("heap: corrupt header: truncated name bytes for column %d", i)
		}
		name := string(buf[off : off+nameLen])
		off += nameLen

		if off+2 > len(buf) {
			return nil, fmt.Errorf("heap: corrupt header: truncated type length for column %d", i)
		}
		typeLen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+typeLen > len(buf) {
			return nil, fmt.Errorf("heap: corrupt header: truncated type bytes for column %d", i)
		}
		typeStr := string(buf[off : off+typeLen])
		off += typeLen

		col, err := parseTypeString(name, typeStr)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func parseTypeString(name, s string) (catalog.Column, error) {
	switch {
	case s == "INT":
		return catalog.Column{Name: name, Type: catalog.Int}, nil
	case s == "FLOAT":
		return catalog.Column{Name: name, Type: catalog.Float}, nil
	case s == "BOOL":
		return catalog.Column{Name: name, Type: catalog.Bool}, nil
	case s == "VARCHAR":
		return catalog.Column{Name: name, Type: catalog.Varchar}, nil
	default:
		var n int
		if _, err := fmt.Sscanf(s, "VARCHAR(%d)", &n); err == nil {
			return catalog.Column{Name: name, Type: catalog.Varchar, VarcharN: n}, nil
		}
		return catalog.Column{}, fmt.Errorf("heap: unrecognized column type string %q", s)
	}
}
