package domain

// MoveIndex returns a copy of items with the element at from removed and reinserted at to.
// All other elements keep their relative order. Out-of-range indices yield an unchanged copy.
func MoveIndex[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out
}

// IndexOfTask returns the index of the task with id, or -1.
func IndexOfTask(tasks []Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
