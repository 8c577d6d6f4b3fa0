package rulesets

import "github.com/tstirrat/newthreat/threat"

func static(source threat.ModifierSource, name string, value float64) threat.ModifierFunc {
	m := threat.Modifier{Source: source, Name: name, Value: value}
	return func(*threat.Context) threat.Modifier {
		return m
	}
}

// whileActive yields value only while the source also carries one of the
// gate auras, and 1 otherwise.
func whileActive(source threat.ModifierSource, name string, value float64, gates ...int) threat.ModifierFunc {
	return func(ctx *threat.Context) threat.Modifier {
		m := threat.Modifier{Source: source, Name: name, Value: 1}
		for _, gate := range gates {
			if ctx.SourceAuras.Has(gate) {
				m.Value = value
				break
			}
		}
		return m
	}
}

func sameFormula(f threat.Formula, ids ...int) map[int]threat.Formula {
	out := make(map[int]threat.Formula, len(ids))
	for _, id := range ids {
		out[id] = f
	}
	return out
}

func merge[V any](dst map[int]V, src map[int]V) map[int]V {
	if dst == nil {
		dst = make(map[int]V, len(src))
	}
	for id, v := range src {
		dst[id] = v
	}
	return dst
}
