// Package gwerr defines the error kinds shared across the gateway's
// TCP and HTTP frontends, classified via errors.Is/errors.As rather
// than a bespoke error-code framework.
package gwerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", ErrX)
// to attach context while keeping the kind classifiable.
var (
	// ErrClientError marks malformed input, missing fields, or an oversize body.
	ErrClientError = errors.New("client error")
	// ErrDeviceOffline marks a push targeting a SN with no active session.
	ErrDeviceOffline = errors.New("device offline")
	// ErrUnavailable marks the KVS being unreachable.
	ErrUnavailable = errors.New("store unavailable")
	// ErrTimeout marks a handshake, heartbeat, or ack-wait deadline expiring.
	ErrTimeout = errors.New("timeout")
	// ErrIO marks a socket read/write/flush failure.
	ErrIO = errors.New("io error")
	// ErrInternal marks a violated programming invariant.
	ErrInternal = errors.New("internal error")
)

// PushReason is one of the fixed reason strings spec'd for
// POST /push/push_msg error bodies.
type PushReason string

const (
	ReasonOverflow    PushReason = "overflow"
	ReasonNoSN        PushReason = "have no sn field"
	ReasonOffline     PushReason = "device offline"
	ReasonNoResponse  PushReason = "no response"
	ReasonInvalidData PushReason = "invalid data"
)

// ReasonSendFail formats the "send message fail <detail>" reason.
func ReasonSendFail(detail string) PushReason {
	return PushReason(fmt.Sprintf("send message fail %s", detail))
}
