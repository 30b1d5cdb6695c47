package presence

import "sync/atomic"

// LoopState is the lifecycle of IngestLoop and PublishLoop.
type LoopState int32

const (
	StateInit LoopState = iota
	StateRunning
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type loopState struct {
	v atomic.Int32
}

func (s *loopState) set(state LoopState) {
	s.v.Store(int32(state))
}

func (s *loopState) get() LoopState {
	return LoopState(s.v.Load())
}
