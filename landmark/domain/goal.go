package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Goal is a single candidate goal condition.
type Goal struct {
	// Index is the position of the goal in the goal list (0-based).
	// Order determines task identifiers and matrix row order.
	Index int

	// Text is the goal condition exactly as read from the goal list.
	Text string
}

// TaskID identifies a task instantiated from a goal, e.g. "task3".
type TaskID string

const taskIDPrefix = "task"

// FormatTaskID returns the identifier for the n-th task of a run.
func FormatTaskID(n int) TaskID {
	return TaskID(taskIDPrefix + strconv.Itoa(n))
}

// Seq returns the counter value encoded in the identifier.
func (id TaskID) Seq() (int, error) {
	s := string(id)
	if !strings.HasPrefix(s, taskIDPrefix) {
		return 0, fmt.Errorf("%w: task id %q", ErrInvalidArgument, s)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, taskIDPrefix))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: task id %q", ErrInvalidArgument, s)
	}
	return n, nil
}

// Filename returns the scratch file name for the task, e.g. "task3.pddl".
func (id TaskID) Filename(ext string) string {
	return string(id) + ext
}

func (id TaskID) String() string {
	return string(id)
}

// Task is a concrete task description: the template with one goal substituted.
type Task struct {
	// ID is the run-scoped task identifier.
	ID TaskID

	// Goal is the goal substituted into the template.
	Goal Goal

	// Text is the instantiated task description.
	Text string

	// Path is where the task description was staged on disk.
	Path string

	// PlaceholderFound is false when the template had no placeholder
	// and Text equals the template.
	PlaceholderFound bool
}
