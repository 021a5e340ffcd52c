// Package logx is replywatch's logging layer on top of zerolog.
//
// Console output is human readable with a short caller, the optional file
// sink writes JSON lines, and warnings can be mirrored to a Slack channel
// with a level floor and rate limit. Service.Apply swaps sinks at runtime.
package logx
