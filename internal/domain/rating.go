package domain

import (
	"math"
	"time"
)

// Score bounds enforced by the rating form sliders.
const (
	MinScore     = 1
	MaxScore     = 10
	DefaultScore = 5
)

// InScoreRange reports whether v is a valid criterion score.
func InScoreRange(v int) bool {
	return v >= MinScore && v <= MaxScore
}

// Scores holds one value per rating criterion. The "score" validation tag
// is backed by InScoreRange.
type Scores struct {
	Plot           int `db:"plot" validate:"score"`
	Acting         int `db:"acting" validate:"score"`
	Direction      int `db:"direction" validate:"score"`
	Screenplay     int `db:"screenplay" validate:"score"`
	Sound          int `db:"sound" validate:"score"`
	Cinematography int `db:"cinematography" validate:"score"`
	Editing        int `db:"editing" validate:"score"`
	Design         int `db:"design" validate:"score"`
	Emotion        int `db:"emotion" validate:"score"`
	Entertainment  int `db:"entertainment" validate:"score"`
}

// Criterion describes one rating dimension. Column doubles as the form field name.
type Criterion struct {
	Column string
	Label  string
	get    func(*Scores) *int
}

// Criteria lists the rating dimensions in display order.
var Criteria = [...]Criterion{
	{Column: "plot", Label: "Plot", get: func(s *Scores) *int { return &s.Plot }},
	{Column: "acting", Label: "Acting", get: func(s *Scores) *int { return &s.Acting }},
	{Column: "direction", Label: "Direction", get: func(s *Scores) *int { return &s.Direction }},
	{Column: "screenplay", Label: "Screenplay", get: func(s *Scores) *int { return &s.Screenplay }},
	{Column: "sound", Label: "Sound", get: func(s *Scores) *int { return &s.Sound }},
	{Column: "cinematography", Label: "Cinematography", get: func(s *Scores) *int { return &s.Cinematography }},
	{Column: "editing", Label: "Editing", get: func(s *Scores) *int { return &s.Editing }},
	{Column: "design", Label: "Design", get: func(s *Scores) *int { return &s.Design }},
	{Column: "emotion", Label: "Emotion", get: func(s *Scores) *int { return &s.Emotion }},
	{Column: "entertainment", Label: "Entertainment", get: func(s *Scores) *int { return &s.Entertainment }},
}

// Value returns the criterion's score from s.
func (c Criterion) Value(s Scores) int {
	return *c.get(&s)
}

// Set stores v as the criterion's score in s.
func (c Criterion) Set(s *Scores, v int) {
	*c.get(s) = v
}

// UniformScores returns Scores with every criterion set to v.
func UniformScores(v int) Scores {
	var s Scores
	for _, c := range Criteria {
		c.Set(&s, v)
	}
	return s
}

// ScoresFromSlice maps values onto Criteria order. Missing trailing values stay zero.
func ScoresFromSlice(values []int) Scores {
	var s Scores
	for i, c := range Criteria {
		if i >= len(values) {
			break
		}
		c.Set(&s, values[i])
	}
	return s
}

// Values returns the scores in Criteria order.
func (s Scores) Values() [len(Criteria)]int {
	var out [len(Criteria)]int
	for i, c := range Criteria {
		out[i] = c.Value(s)
	}
	return out
}

// Sum adds up all criterion scores.
func (s Scores) Sum() int {
	total := 0
	for _, v := range s.Values() {
		total += v
	}
	return total
}

// Average is the arithmetic mean of the scores rounded to two decimals.
func (s Scores) Average() float64 {
	return RoundTwoDecimals(float64(s.Sum()) / float64(len(Criteria)))
}

// RoundTwoDecimals rounds half away from zero at the second decimal place.
func RoundTwoDecimals(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rating is a single stored submission. Rows are append-only.
type Rating struct {
	ID    int64  `db:"id"`
	User  string `db:"user"`
	Movie string `db:"movie"`
	Scores
	Average   float64   `db:"average"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}

// After reports whether r was stored later than other, using created_at then id.
func (r Rating) After(other Rating) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.After(other.CreatedAt)
	}
	return r.ID > other.ID
}

// MovieAverage is the per-movie mean of stored rating averages.
type MovieAverage struct {
	Movie   string  `db:"movie"`
	Average float64 `db:"avg_rating"`
}
