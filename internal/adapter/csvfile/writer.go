// Package csvfile renders normalized wide tables as CSV.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

// Write renders the result's wide table to w, header first. Missing cells and
// NaN readings render as empty fields.
func Write(w io.Writer, res *waterml.Result) error {
	cw := csv.NewWriter(w)

	cols := res.Table.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(cols))
	for i := 0; i < res.Table.Len(); i++ {
		for j, c := range cols {
			v, ok := res.Table.Value(i, c)
			if !ok {
				record[j] = ""
				continue
			}
			record[j] = renderCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderCell(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// FileSink writes each normalized result to a file, replacing the previous
// contents. It implements pipeline.Sink.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Load(_ context.Context, res *waterml.Result) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := Write(f, res); err != nil {
		return err
	}
	return f.Close()
}
