package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"chartengine/internal/model"
)

// parseBarsCSV reads rows of time,open,high,low,close[,volume]. Time is Unix
// milliseconds or RFC3339. A leading header row is skipped.
func parseBarsCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields, got %d", line, len(rec))
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var vals [5]float64
		n := 4
		if len(rec) > 5 {
			n = 5
		}
		for i := 0; i < n; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+2, err)
			}
			vals[i] = v
		}
		bars = append(bars, model.Bar{
			Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	return bars, nil
}

func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("time %q: not unix ms or RFC3339", s)
	}
	return t.UnixMilli(), nil
}
