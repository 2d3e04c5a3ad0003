package app

import "github.com/dkeye/Nearby/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(member core.MemberSession) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(member core.MemberSession) BackpressureAction {
	return KickMember
}

type SupersedeAction int

const (
	// NotifyStale tells the old connection it lost its username and keeps it open.
	NotifyStale SupersedeAction = iota
	// CloseStale closes the old connection.
	CloseStale
)
