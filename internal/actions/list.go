package actions

// scheduledList is the ordered set of scheduled actions, kept as handles
// into the registry pool. Order is insertion order.
type scheduledList struct {
	handles []int
}

func newScheduledList(capacity int) scheduledList {
	return scheduledList{handles: make([]int, 0, capacity)}
}

// insert appends h at the tail. It fails for a negative handle.
func (l *scheduledList) insert(h int) bool {
	if h < 0 {
		return false
	}
	l.handles = append(l.handles, h)
	return true
}

// find returns the position of h, or -1.
func (l *scheduledList) find(h int) int {
	for i, cur := range l.handles {
		if cur == h {
			return i
		}
	}
	return -1
}

// remove unlinks h, keeping the order of the remaining handles.
func (l *scheduledList) remove(h int) bool {
	i := l.find(h)
	if i < 0 {
		return false
	}
	copy(l.handles[i:], l.handles[i+1:])
	l.handles = l.handles[:len(l.handles)-1]
	return true
}

func (l *scheduledList) len() int {
	return len(l.handles)
}
