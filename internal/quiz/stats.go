package quiz

import "math"

// Bucket counts attempts whose score falls in [Low, High); the last bucket
// includes 100.
type Bucket struct {
	Low   int `json:"low"`
	High  int `json:"high"`
	Count int `json:"count"`
}

type Stats struct {
	Attempts int       `json:"attempts"`
	Best     float64   `json:"best"`
	Average  float64   `json:"average"`
	Latest   *Attempt  `json:"latest,omitempty"`
	Buckets  []Bucket  `json:"buckets"`
	Recent   []float64 `json:"recent"` // up to 10 scores, oldest first
}

// Summarize expects attempts newest first, as the backend lists them.
func Summarize(attempts []Attempt) Stats {
	st := Stats{Attempts: len(attempts)}
	for low := 0; low < 100; low += 20 {
		st.Buckets = append(st.Buckets, Bucket{Low: low, High: low + 20})
	}
	if len(attempts) == 0 {
		return st
	}
	latest := attempts[0]
	st.Latest = &latest

	var sum float64
	for _, a := range attempts {
		p := a.ScorePct.Float()
		sum += p
		st.Best = math.Max(st.Best, p)
		i := int(p) / 20
		if i > 4 {
			i = 4
		}
		if i < 0 {
			i = 0
		}
		st.Buckets[i].Count++
	}
	st.Average = math.Round(sum/float64(len(attempts))*10) / 10

	n := len(attempts)
	if n > 10 {
		n = 10
	}
	for i := n - 1; i >= 0; i-- {
		st.Recent = append(st.Recent, attempts[i].ScorePct.Float())
	}
	return st
}

// Grade labels a score for display.
func Grade(pct float64) string {
	switch {
	case pct >= 80:
		return "excellent"
	case pct >= 60:
		return "good"
	}
	return "keep practising"
}
