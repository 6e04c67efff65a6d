package grading

// PassFloor is the minimum effective pass threshold. Courses may
// configure a higher bar, never a lower one: a configured threshold
// below 0.8 is silently raised to 0.8. User-visible behavior
// ("80% or better to pass").
const PassFloor = 0.8

// UndefinedGrade is returned when there are no questions to grade.
const UndefinedGrade = "—"

// Result is the outcome of grading one answer set. The caller turns it
// into an attempt record.
type Result struct {
	CorrectCount   int
	TotalQuestions int
	Score          float64
	LetterGrade    string
	Passed         bool
}

// EffectiveThreshold combines the course-configured pass threshold with
// the product-wide floor.
func EffectiveThreshold(configured float64) float64 {
	if configured > PassFloor {
		return configured
	}
	return PassFloor
}

// Grade scores an answer set against the correct choice indices.
// answers[i] == correctIndexes[i] counts as correct; any other value,
// including the unanswered sentinel, counts as incorrect. Pure function.
func Grade(correctIndexes, answers []int, effectiveThreshold float64) Result {
	total := len(correctIndexes)
	correct := 0
	for i, want := range correctIndexes {
		if i < len(answers) && answers[i] == want {
			correct++
		}
	}
	divisor := total
	if divisor < 1 {
		divisor = 1
	}
	score := float64(correct) / float64(divisor)
	return Result{
		CorrectCount:   correct,
		TotalQuestions: total,
		Score:          score,
		LetterGrade:    Letter(correct, total),
		Passed:         score >= effectiveThreshold,
	}
}

// Letter maps correct/total counts to a discrete grade. The top of the
// table is count-based (a perfect round and a single miss are named
// outcomes), the rest falls through ratio buckets.
func Letter(correct, total int) string {
	if total == 0 {
		return UndefinedGrade
	}
	if correct == total {
		return "A+"
	}
	if total-correct == 1 {
		return "A"
	}
	ratio := float64(correct) / float64(total)
	switch {
	case ratio >= 0.90:
		return "A-"
	case ratio >= 0.80:
		return "B"
	case ratio >= 0.70:
		return "C"
	case ratio >= 0.60:
		return "D"
	default:
		return "F"
	}
}
