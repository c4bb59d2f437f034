package session

import (
	"errors"
	"strings"
)

// ErrNoSession is returned when an operation needs an identity and none was provided.
var ErrNoSession = errors.New("no active session")

// Source records how a session was established
type Source string

const (
	SourceJWKS    Source = "jwks"
	SourceLegacy  Source = "legacy"
	SourceGateway Source = "gateway"
	SourceLocal   Source = "local"
)

// Session is the operator identity passed explicitly to collaborators that
// need it. It is created when a request is authenticated and dropped with it.
type Session struct {
	UserID string
	Email  string
	Name   string
	Source Source
}

// New builds a session, rejecting an empty user ID.
func New(userID, email, name string, source Source) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoSession
	}
	return &Session{
		UserID: userID,
		Email:  email,
		Name:   name,
		Source: source,
	}, nil
}

// Creator returns the value recorded as created_by on unit records.
func (s *Session) Creator() string {
	if s == nil {
		return ""
	}
	return s.UserID
}
