package frontmatter

import "strconv"

// Title returns the frontmatter title, or "" when none is set.
func Title(fields map[string]any) string {
	if v, ok := fields["title"].(string); ok {
		return v
	}
	return ""
}

// Weight returns the navigation ordering weight. Both "weight" and
// "nav_order" are honored, with "weight" winning when both are present.
func Weight(fields map[string]any) (int, bool) {
	for _, key := range []string{"weight", "nav_order"} {
		if v, ok := fields[key]; ok {
			if w, ok := toInt(v); ok {
				return w, true
			}
		}
	}
	return 0, false
}

// Hidden reports whether a document opts out of navigation and search.
// Both "hidden" and "draft" flags hide a document.
func Hidden(fields map[string]any) bool {
	for _, key := range []string{"hidden", "draft"} {
		if v, ok := fields[key].(bool); ok && v {
			return true
		}
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
