package protocol

import "time"

const (
	HashSize = 20

	HeaderSize           = 8 + 4 + 4
	AnnounceBodySize     = HashSize + HashSize + 8 + 8 + 8 + 4 + 4 + 4 + 4 + 2
	ConnectResponseSize  = 4 + 4 + 8
	AnnounceResponseSize = 4 + 4 + 4 + 4 + 4
	ErrorHeaderSize      = 4 + 4

	// MaxPacketSize is the receive buffer used for one datagram.
	MaxPacketSize = 1500

	// ProtocolID is the magic connection id clients put in a connect request.
	ProtocolID int64 = 0x41727101980

	// AnnounceInterval is the re-announce period handed to every client.
	AnnounceInterval = 30 * time.Minute
)

type Action int32

const (
	ActionConnect  Action = 0
	ActionAnnounce Action = 1
	ActionScrape   Action = 2
	ActionError    Action = 3
)

func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "CONNECT"
	case ActionAnnounce:
		return "ANNOUNCE"
	case ActionScrape:
		return "SCRAPE"
	case ActionError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is informational only; the tracker never branches on it.
type Event int32

const (
	EventNone      Event = 0
	EventCompleted Event = 1
	EventStarted   Event = 2
	EventStopped   Event = 3
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventCompleted:
		return "completed"
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
