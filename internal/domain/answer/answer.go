package answer

import "github.com/kailas-cloud/studybuddy/internal/domain/category"

// Answer is the result of a successful Ask.
type Answer struct {
	Text              string
	Category          category.Category
	QuestionMessageID int64
	AnswerMessageID   int64
	Attempts          int
	Remaining         int // allowance left for Category after this answer
}
