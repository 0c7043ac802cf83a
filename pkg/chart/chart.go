// Package chart builds chart payloads from standard-shaped dispatch results.
// Chart construction is best-effort: a failure here is reported to the
// dispatcher, which downgrades it to an envelope warning rather than an
// error, so it never spoils a successful data fetch.
package chart

import (
	"fmt"

	"github.com/quantdesk/command-registry/pkg/registry"
)

// Chart is the payload attached to a result envelope when charting was
// requested and succeeded.
type Chart struct {
	// XField names the field used for the x axis (the model's date field
	// when one exists, otherwise the record index).
	XField string   `json:"xField"`
	X      []string `json:"x"`
	// Series maps each numeric result field to its values. Every series has
	// one entry per X point; a nil entry marks a record with no usable value
	// for that field.
	Series map[string][]*float64 `json:"series"`
}

// Build constructs a chart from the mapped records and the model's result
// fields. It fails when there is nothing to plot: no records, or no numeric
// result field present in the data.
func Build(records []registry.Record, resultFields []registry.Field) (*Chart, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("chart: no records to plot")
	}

	xField := ""
	var numeric []string
	for _, f := range resultFields {
		switch f.Kind {
		case registry.KindDate:
			if xField == "" {
				xField = f.Name
			}
		case registry.KindInt, registry.KindFloat:
			numeric = append(numeric, f.Name)
		}
	}
	if len(numeric) == 0 {
		return nil, fmt.Errorf("chart: model has no numeric result fields")
	}

	c := &Chart{XField: xField, Series: make(map[string][]*float64)}
	points := make(map[string]int)
	for i, rec := range records {
		if xField != "" {
			c.X = append(c.X, fmt.Sprintf("%v", rec[xField]))
		} else {
			c.X = append(c.X, fmt.Sprintf("%d", i))
		}
		for _, name := range numeric {
			if v, ok := asFloat(rec[name]); ok {
				c.Series[name] = append(c.Series[name], &v)
				points[name]++
			} else {
				c.Series[name] = append(c.Series[name], nil)
			}
		}
	}
	for _, name := range numeric {
		if points[name] == 0 {
			delete(c.Series, name)
		}
	}
	if len(c.Series) == 0 {
		return nil, fmt.Errorf("chart: no numeric values found in records")
	}
	return c, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
