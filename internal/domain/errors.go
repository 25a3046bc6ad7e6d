package domain

import "errors"

var (
	// ErrNoActiveSession is returned when registration is attempted with no open exam.
	ErrNoActiveSession = errors.New("no active exam session")
	// ErrNotRegistered is returned when a protected action lacks a resolved identity.
	ErrNotRegistered = errors.New("not registered")
	// ErrQuestionNotFound indicates a submitted question ID is unknown.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrParticipantNotFound indicates the identity points at a missing participant row.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrExamClosed is returned when the submission window has elapsed or the exam was ended.
	ErrExamClosed = errors.New("exam is closed")
	// ErrInvalidInput flags admin input that fails validation (option letter, duration).
	ErrInvalidInput = errors.New("invalid input")
)
