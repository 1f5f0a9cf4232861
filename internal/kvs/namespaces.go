package kvs

import "fmt"

// Namespaces for the four entities in the shared schema (spec §3, §6).
const (
	BornKey   = "csod/devices_born"
	AliveKey  = "csod/devices_alive"
	EventsKey = "csod/mq/p5"

	statusPrefix = "csod/device_status/"

	// EventsChannel is the pub/sub channel internal/relay subscribes to
	// for a live mirror of the event stream. It is never rpop'd, so it
	// cannot interfere with consumers draining EventsKey.
	EventsChannel = "csod/mq/p5:live"
)

// StatusKey returns the per-SN device status hash key.
func StatusKey(sn string) string {
	return statusPrefix + sn
}

// Status hash field names.
const (
	FieldOnline     = "online"
	FieldToggletime = "toggletime"
	FieldBorntime   = "borntime"
	FieldUplink     = "uplink"
	FieldDownlink   = "downlink"
)

const (
	onlineTrue  = "true"
	onlineFalse = "false"
)

func onlineString(online bool) string {
	if online {
		return onlineTrue
	}
	return onlineFalse
}

func formatScore(epochSeconds float64) string {
	return fmt.Sprintf("%.6f", epochSeconds)
}
