package models

const (
	ErrTypeWorldNotFound     = "world-not-found"
	ErrTypeTooManyWorlds     = "too-many-worlds"
	ErrTypeInvalidWorld      = "invalid-world"
	ErrTypeEntityNotFound    = "entity-not-found"
	ErrTypeEntityOutOfBounds = "entity-out-of-bounds"
	ErrTypeInvalidPose       = "invalid-pose"
	ErrTypeInvalidQuery      = "invalid-query"
)
