package predicate

import (
	"math"
	"time"
)

// Render converts the predicate into the nested field-path / operator / value
// document consumed by document-style query layers:
//
//	{"AND": [{"values": {"some": {"propertyId": "...", "textValue": {"contains": "john", "mode": "insensitive"}}}}]}
//
// A predicate that matches everything renders as an empty document.
func Render(p Predicate) map[string]any {
	if p.MatchesEverything() {
		return map[string]any{}
	}
	return renderCondition(p.Root)
}

func renderCondition(c Condition) map[string]any {
	switch n := c.(type) {
	case All:
		return map[string]any{"AND": renderChildren(n)}
	case Any:
		return map[string]any{"OR": renderChildren(n)}
	case ValueMatch:
		slot := make(map[string]any, len(n.Comparisons)+1)
		for _, cmp := range n.Comparisons {
			slot[string(cmp.Operator)] = renderOperand(cmp.Operand)
		}
		if n.Insensitive {
			slot["mode"] = "insensitive"
		}
		return map[string]any{
			"values": map[string]any{
				string(n.Quantifier): map[string]any{
					"propertyId":   n.PropertyID.String(),
					string(n.Slot): slot,
				},
			},
		}
	case ParentMatch:
		if n.None {
			return map[string]any{"parentRows": map[string]any{"none": map[string]any{}}}
		}
		return map[string]any{"parentRows": map[string]any{"some": map[string]any{"parentId": n.ParentID}}}
	case TagMatch:
		return map[string]any{
			"tags": map[string]any{
				"some": map[string]any{
					"tag": map[string]any{"value": map[string]any{"in": append([]string(nil), n.Values...)}},
				},
			},
		}
	}
	return map[string]any{}
}

func renderChildren(children []Condition) []any {
	out := make([]any, 0, len(children))
	for _, child := range children {
		out = append(out, renderCondition(child))
	}
	return out
}

// renderOperand keeps the document JSON-encodable; NaN is written as the
// string "NaN".
func renderOperand(o Operand) any {
	switch o.Kind {
	case OperandText:
		return o.Text
	case OperandTexts:
		return append([]string(nil), o.Texts...)
	case OperandNumber:
		return renderNumber(o.Number)
	case OperandNumbers:
		out := make([]any, len(o.Numbers))
		for i, n := range o.Numbers {
			out[i] = renderNumber(n)
		}
		return out
	case OperandTime:
		return o.Time.UTC().Format(time.RFC3339)
	case OperandBool:
		return o.Bool
	}
	return nil
}

func renderNumber(n float64) any {
	if math.IsNaN(n) {
		return "NaN"
	}
	return n
}
