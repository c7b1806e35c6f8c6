package memory

import "errors"

var (
	// ErrInvalidProjectID indicates a project id that is not safe as a file name.
	ErrInvalidProjectID = errors.New("invalid project id: must be alphanumeric with dots, hyphens or underscores")

	// ErrInvalidSectionName indicates an empty or multi-line section name.
	ErrInvalidSectionName = errors.New("invalid section name")

	// ErrSectionNotFound is returned by ReadSectionStrict for absent sections.
	ErrSectionNotFound = errors.New("section not found")

	// ErrProjectNotFound indicates no memory document exists for the project.
	ErrProjectNotFound = errors.New("project memory not found")

	// ErrDocumentCorrupted indicates the file lacks the memory preamble.
	ErrDocumentCorrupted = errors.New("project memory document corrupted")
)
