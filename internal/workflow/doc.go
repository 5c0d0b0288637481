// Package workflow runs pipeline requests on a bounded pool of workers.
//
// The transport hands requests to Manager.Submit, which never blocks: a
// full queue is reported as ErrQueueFull so the poller can answer the user
// immediately and keep reading updates. Workers pull from the queue until
// the manager is stopped; a stop cancels in-flight requests, whose stages
// then clean up exactly as on any other failure.
package workflow
