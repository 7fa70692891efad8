package models

// ModelError is a validation error raised when constructing a model
type ModelError struct {
	Message string
}

func (e ModelError) Error() string {
	return e.Message
}

var (
	ErrEmptyUserID       = ModelError{"user id cannot be empty"}
	ErrInvalidDay        = ModelError{"day must be in YYYY-MM-DD format"}
	ErrNegativeMinutes   = ModelError{"minutes cannot be negative"}
	ErrEmptyConnectionID = ModelError{"connection id cannot be empty"}
	ErrEmptyProjectID    = ModelError{"project id cannot be empty"}
	ErrEmptyProjectName  = ModelError{"project name cannot be empty"}
	ErrInvalidRemoteID   = ModelError{"remote id must be positive"}
	ErrNonTerminalStatus = ModelError{"sync run must be completed with a terminal status"}
)
