package staticads

import (
	"sort"

	"adstudio/internal/domain"
)

// DefaultQuotaPerAngle is how many results each selected angle is expected to
// produce. It is product policy and can be overridden with Options.QuotaPerAngle.
const DefaultQuotaPerAngle = 2

// Placeholders counts results still expected per canonical angle string.
// Counts never go below zero; keys that reach zero are removed.
type Placeholders map[string]int

// Seed adds quota to every angle. Submitting the same angle again while a
// previous job is still pending stacks the counts.
func (p Placeholders) Seed(angles []string, quota int) {
	if quota <= 0 {
		return
	}
	for _, a := range angles {
		if a = domain.CanonicalAngle(a); a != "" {
			p[a] += quota
		}
	}
}

// Resume replaces all counts with quota for every angle of an in-flight job
// found at load time.
func (p Placeholders) Resume(angles []string, quota int) {
	p.Clear()
	if quota <= 0 {
		return
	}
	for _, a := range angles {
		if a = domain.CanonicalAngle(a); a != "" {
			p[a] = quota
		}
	}
}

// Consume decrements one angle and reports whether a placeholder was taken.
func (p Placeholders) Consume(angle string) bool {
	angle = domain.CanonicalAngle(angle)
	n, ok := p[angle]
	if !ok || n <= 0 {
		delete(p, angle)
		return false
	}
	if n == 1 {
		delete(p, angle)
	} else {
		p[angle] = n - 1
	}
	return true
}

// Attribute consumes one placeholder for each result, resolving the angle via
// angles[AngleIndex-1]. Results with an out-of-range index are ignored. It
// returns how many placeholders were consumed.
func (p Placeholders) Attribute(results []domain.GeneratedResult, angles []string) int {
	consumed := 0
	for _, r := range results {
		angle, ok := angleAt(angles, r.AngleIndex)
		if !ok {
			continue
		}
		if p.Consume(angle) {
			consumed++
		}
	}
	return consumed
}

// Clear removes every key.
func (p Placeholders) Clear() {
	for k := range p {
		delete(p, k)
	}
}

// Count returns the remaining count for an angle.
func (p Placeholders) Count(angle string) int {
	return p[domain.CanonicalAngle(angle)]
}

// Total returns the number of outstanding placeholders across all angles.
func (p Placeholders) Total() int {
	total := 0
	for _, n := range p {
		total += n
	}
	return total
}

// Snapshot copies the counts.
func (p Placeholders) Snapshot() map[string]int {
	out := make(map[string]int, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func angleAt(angles []string, index int) (string, bool) {
	if index < 1 || index > len(angles) {
		return "", false
	}
	angle := domain.CanonicalAngle(angles[index-1])
	return angle, angle != ""
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
