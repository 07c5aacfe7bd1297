// Package ipc carries plan requests between the game mod and the sidecar.
//
// Every frame is a 4-byte little-endian length followed by a JSON envelope
// {"type": ..., "data": ...}. A session opens with the mod's hello, which
// the sidecar answers with an ack. After that the mod sends plan_request
// messages, each answered by exactly one build_order or error message
// echoing the request id. Requests sent before hello are refused.
package ipc
