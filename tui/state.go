package tui

type state int

const (
	playingState state = iota
	tracksState
	errorState
)
