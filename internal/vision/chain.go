package vision

// ModelChain builds the ordered, de-duplicated list of models the
// extractor tries in turn: primary, fallback, fast, then whatever extra
// chain the deployment configured — first occurrence wins.
func ModelChain(primary, fallback, fast string, extra []string) []string {
	candidates := make([]string, 0, 3+len(extra))
	candidates = append(candidates, primary, fallback, fast)
	candidates = append(candidates, extra...)
	return dedupeModels(candidates)
}

func dedupeModels(models []string) []string {
	seen := make(map[string]bool, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
