package resolve

import "sort"

// Candidate is a normalized target name scored against a source name.
type Candidate struct {
	Name  string
	Score float64
}

// FindCandidates scores name against every entry of universe and returns the
// ones scoring at least threshold, best first. Equal scores keep universe
// order, so results are reproducible for a given universe.
func FindCandidates(name string, universe []string, threshold float64) []Candidate {
	if name == "" {
		return nil
	}

	var out []Candidate
	for _, candidate := range universe {
		score := TokenSortRatio(name, candidate)
		if score >= threshold {
			out = append(out, Candidate{Name: candidate, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// CandidateNames returns the names of the candidates, in order.
func CandidateNames(candidates []Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	return names
}
