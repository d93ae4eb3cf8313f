// Package queue serializes voice actions.
// An ActionQueue runs submitted actions one at a time, in submission order,
// and resolves each caller's Completion once its own action has settled.
package queue
