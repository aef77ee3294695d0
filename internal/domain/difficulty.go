package domain

// Difficulties are stored as integers so they can be compared and
// range-filtered, but clients may exchange them as labels.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// DifficultyLabels maps difficulty value v to DifficultyLabels[v-1].
var DifficultyLabels = []string{"easy", "medium", "difficult", "challenging", "extreme"}

// IsDifficultyValue reports whether v is a valid difficulty rating.
func IsDifficultyValue(v int) bool {
	return v >= MinDifficulty && v <= MaxDifficulty
}

// DifficultyLabel returns the label for a difficulty value, or "" when
// the value is out of range.
func DifficultyLabel(v int) string {
	if !IsDifficultyValue(v) {
		return ""
	}
	return DifficultyLabels[v-1]
}

// ParseDifficultyLabel resolves a label to its value. The second return
// is false when the label is unknown.
func ParseDifficultyLabel(label string) (int, bool) {
	for i, l := range DifficultyLabels {
		if l == label {
			return i + 1, true
		}
	}
	return 0, false
}
