// Package aggregate implements the EXP-layer reductions twice over: as
// grouped-reduction functions over in-memory records, testable without any
// query engine, and as the SQL statements the sink materializes. The sink
// may persist either form as a stored table or a recomputed view.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"mallard/pkg/models"
)

// Key maps an output column to the input field it groups by.
type Key struct {
	As    string
	Field string
}

// GroupCount groups rows by the given keys and emits one row per distinct
// combination with the group's row count under totalAs. Output order is
// deterministic (keys ascending) but not part of the contract.
func GroupCount(rows []models.Record, keys []Key, totalAs string) []models.Record {
	type group struct {
		values []interface{}
		count  int
	}

	groups := map[string]*group{}
	for _, row := range rows {
		values := make([]interface{}, len(keys))
		parts := make([]string, len(keys))
		for i, k := range keys {
			values[i] = row[k.Field]
			parts[i] = fmt.Sprint(row[k.Field])
		}
		id := strings.Join(parts, "\x00")

		g, ok := groups[id]
		if !ok {
			g = &group{values: values}
			groups[id] = g
		}
		g.count++
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.Record, 0, len(groups))
	for _, id := range ids {
		g := groups[id]
		rec := make(models.Record, len(keys)+1)
		for i, k := range keys {
			rec[k.As] = g.values[i]
		}
		rec[totalAs] = int64(g.count)
		out = append(out, rec)
	}
	return out
}

// MeanScore groups rows by groupField and emits the arithmetic mean of
// valueField rounded to precision fractional digits, sorted descending by
// the rounded mean. Ties, and groups whose values are all null, are ordered
// by group name ascending; all-null groups sort last with a nil total.
func MeanScore(rows []models.Record, groupField, groupAs, valueField, totalAs string, precision int) []models.Record {
	type group struct {
		name  string
		sum   float64
		count int
	}

	groups := map[string]*group{}
	for _, row := range rows {
		name := fmt.Sprint(row[groupField])
		g, ok := groups[name]
		if !ok {
			g = &group{name: name}
			groups[name] = g
		}
		v, ok := asFloat(row[valueField])
		if !ok {
			continue // null values do not contribute, as in SQL avg()
		}
		g.sum += v
		g.count++
	}

	scale := math.Pow(10, float64(precision))
	out := make([]models.Record, 0, len(groups))
	for _, g := range groups {
		rec := models.Record{groupAs: g.name}
		if g.count > 0 {
			rec[totalAs] = math.Round(g.sum/float64(g.count)*scale) / scale
		} else {
			rec[totalAs] = nil
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, aOK := out[i][totalAs].(float64)
		b, bOK := out[j][totalAs].(float64)
		switch {
		case aOK && bOK && a != b:
			return a > b
		case aOK != bOK:
			return aOK // non-null before null
		default:
			return out[i][groupAs].(string) < out[j][groupAs].(string)
		}
	})
	return out
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// GroupCountSQL is the sink-side statement for the cuisine/borough counts.
func GroupCountSQL(rawTable string) string {
	return fmt.Sprintf(
		"select cuisine as tipo_cozinha, borough as bairro, count(cuisine) as total from %s group by cuisine, borough",
		rawTable,
	)
}

// MeanScoreSQL is the sink-side statement for the per-restaurant mean
// score, rounded to two fractional digits, descending with name as the
// tie-breaker.
func MeanScoreSQL(intTable string) string {
	return fmt.Sprintf(
		"select name as restaurante, round(avg(score), 2) as total from %s group by name order by total desc, restaurante asc",
		intTable,
	)
}
