// Package realtime keeps the in-memory table of live push channels and
// delivers swap notifications onto them as server-sent events.
package realtime
