package model

// QuestionResult is one row of the results view.
type QuestionResult struct {
	Number     int          `json:"number"`
	QuestionID string       `json:"questionId"`
	Text       string       `json:"question"`
	Type       QuestionType `json:"type"`
	Marks      int          `json:"marks"`
	Answer     string       `json:"answer"`
	Answered   bool         `json:"answered"`
	Score      float64      `json:"score"`
	IsCorrect  bool         `json:"isCorrect"`
	Feedback   string       `json:"feedback,omitempty"`
}

// SessionResults is the results view of a finished session.
type SessionResults struct {
	Score     Score            `json:"score"`
	Questions []QuestionResult `json:"questions"`
}
