package realtime

import "time"

const (
	// Hard cap on a single inbound frame, enforced at the transport.
	maxFrameBytes = 32 << 10

	// Cap on message length in runes, checked after trimming.
	maxMessageChars = 4000
)

// Heartbeat defaults; PARLEY_WS_HEARTBEAT_* env vars override them.
const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
)
