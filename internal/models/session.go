package models

type GameKind string

const (
	GameKindMines GameKind = "mines"
	GameKindApex  GameKind = "apex"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)
