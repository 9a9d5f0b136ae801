package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when a connection acts before authenticating.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrMatchNotFound is returned when a match id or join code resolves to nothing.
	ErrMatchNotFound = errors.New("match not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz rejects match creation against a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrInvalidState rejects an operation illegal for the match's current status.
	ErrInvalidState = errors.New("operation not valid for match state")
	// ErrMatchFull rejects joins once the player cap is reached.
	ErrMatchFull = errors.New("match is full")
	// ErrDuplicateSubmission rejects a second answer to the same question.
	ErrDuplicateSubmission = errors.New("answer already submitted for this question")
	// ErrAlreadyInMatch rejects joining while indexed to another live match.
	ErrAlreadyInMatch = errors.New("user already in a match")
	// ErrPlayerNotFound is returned when a user acts on a match they never joined.
	ErrPlayerNotFound = errors.New("player not found in match")
	// ErrQuestionNotActive rejects answers targeting anything but the current question.
	ErrQuestionNotActive = errors.New("question is not the active question")
)
