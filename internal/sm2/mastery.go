package sm2

// MasteryLabel is a display-only classification of a concept's progress. It
// has no effect on scheduling.
type MasteryLabel string

const (
	MasteryNew        MasteryLabel = "new"
	MasteryLearning   MasteryLabel = "learning"
	MasteryPracticing MasteryLabel = "practicing"
	MasteryMastered   MasteryLabel = "mastered"
)

// masteredRepetitions is the repetition count at which a graduated concept
// counts as mastered.
const masteredRepetitions = 5

// Mastery derives the display label from a state's repetitions and
// graduation status.
func Mastery(s State) MasteryLabel {
	switch {
	case s.TotalReviews == 0:
		return MasteryNew
	case s.Phase != PhaseReview:
		return MasteryLearning
	case s.Repetitions < masteredRepetitions:
		return MasteryPracticing
	default:
		return MasteryMastered
	}
}
