package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Decode returns b as UTF-8 text without a byte order mark. Input that is not
// valid UTF-8 is treated as CP949, the encoding Korean Excel exports use.
func Decode(b []byte) ([]byte, error) {
	b = bytes.TrimPrefix(b, bom)
	if utf8.Valid(b) {
		return b, nil
	}
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), b)
	if err != nil {
		return nil, fmt.Errorf("decode cp949: %w", err)
	}
	return out, nil
}

// ReadCSV decodes a whole CSV document. An empty document yields an empty
// table with no columns.
func ReadCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(text))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return New(nil, nil), nil
	}
	return New(records[0], dropBlank(records[1:])), nil
}

// WriteCSV encodes header and rows as UTF-8 CSV.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// EncodeCSV is WriteCSV into a byte slice.
func EncodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, header, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dropBlank(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		blank := true
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, r)
		}
	}
	return out
}
