package scheduler

import "errors"

var (
	ErrNotFound        = errors.New("scheduler: job not found")
	ErrQueueFull        = errors.New("scheduler: queue full")
	ErrInvalidPriority  = errors.New("scheduler: invalid priority")
)
