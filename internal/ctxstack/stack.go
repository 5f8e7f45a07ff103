// Package ctxstack estimates P(production | last K productions) over a
// forest. While a tree is walked in pre-order, a stack of context frames
// tracks the most recent ancestor labels in scope; each internal node's
// production is counted against the window on top of the stack.
package ctxstack

import "strings"

// Unknown fills window slots that precede the root of a tree.
const Unknown = "<s>"

// DefaultWindow is the default context length.
const DefaultWindow = 2

// Window is a fixed-length, oldest-first sequence of context entries.
type Window []string

// NewWindow returns a window of k Unknown entries.
func NewWindow(k int) Window {
	w := make(Window, k)
	for i := range w {
		w[i] = Unknown
	}
	return w
}

// Shift returns a new window with the oldest entry dropped and entry
// appended. The receiver is not modified.
func (w Window) Shift(entry string) Window {
	if len(w) == 0 {
		return Window{}
	}
	next := make(Window, len(w))
	copy(next, w[1:])
	next[len(w)-1] = entry
	return next
}

// Key returns a string usable as a map key.
func (w Window) Key() string {
	return strings.Join(w, "\x00")
}

// Frame is one entry of the context stack. A pending frame is consumed by
// the next node visited (a single-nonterminal descent); a persistent frame
// stays active for every sibling subtree below it.
type Frame struct {
	Window     Window
	PendingPop bool
}

// Stack is the per-tree context stack. Its base frame holds an all-Unknown
// window and is never popped.
type Stack struct {
	k      int
	frames []Frame
}

// NewStack returns a stack for windows of length k.
func NewStack(k int) *Stack {
	s := &Stack{k: k}
	s.Reset()
	return s
}

// Reset discards every frame and reinstalls the base frame. Call it before
// each new tree.
func (s *Stack) Reset() {
	s.frames = append(s.frames[:0], Frame{Window: NewWindow(s.k)})
}

// Top returns the frame currently in scope.
func (s *Stack) Top() Frame {
	return s.frames[len(s.frames)-1]
}

// Push makes f the frame in scope.
func (s *Stack) Push(f Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes the top frame. The base frame cannot be popped.
func (s *Stack) Pop() (Frame, bool) {
	if len(s.frames) <= 1 {
		return Frame{}, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// PopPending pops the top frame only if it is pending and reports whether it
// did.
func (s *Stack) PopPending() bool {
	if !s.Top().PendingPop {
		return false
	}
	_, ok := s.Pop()
	return ok
}

// Len returns the number of frames, including the base frame.
func (s *Stack) Len() int {
	return len(s.frames)
}
