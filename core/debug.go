package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// FrameEvent captures an engine event for post-mortem analysis
type FrameEvent struct {
	EventType uint8  // Event type code
	Engine    uint8  // EngineMaster or EngineSlave
	Word      uint16 // Data word at the event, if any
}

// Event type codes
const (
	EvtLaunch   = 1 // master started shifting a frame
	EvtComplete = 2 // master finished a frame
	EvtCommit   = 3 // slave committed a received word
	EvtOverrun  = 4 // slave raised the overrun flag
	EvtClear    = 5 // slave overrun flag cleared
)

// Engine codes for FrameEvent
const (
	EngineMaster = 0
	EngineSlave  = 1
)

const (
	FrameRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	// Disabled by default; rigs enable it when tracing
	debugEnabled bool = false

	// Frame event ring buffer (non-blocking, for post-mortem)
	frameRing     [FrameRingSize]FrameEvent
	frameRingHead uint8

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message (non-blocking)
		}
	}
}

// recordFrameEvent captures an engine event in the ring buffer. Called from
// the engine tick paths, so it must stay non-blocking and cheap. The ring
// is only read after the domains are stopped; interleaved slots from two
// engine goroutines are acceptable for a post-mortem aid.
func recordFrameEvent(eventType, engine uint8, word uint16) {
	idx := frameRingHead
	frameRing[idx] = FrameEvent{
		EventType: eventType,
		Engine:    engine,
		Word:      word,
	}
	frameRingHead = (idx + 1) % FrameRingSize
}

// DumpFrameRing outputs the frame event ring buffer (call on shutdown/error)
// Call after stopping the clock domains
func DumpFrameRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[FRAMES] === Frame Ring Dump ===")

	// Read from oldest to newest
	start := frameRingHead
	for i := uint8(0); i < FrameRingSize; i++ {
		idx := (start + i) % FrameRingSize
		evt := &frameRing[idx]
		if evt.EventType == 0 {
			continue // Empty slot
		}

		var name string
		switch evt.EventType {
		case EvtLaunch:
			name = "LAUNCH"
		case EvtComplete:
			name = "COMPLETE"
		case EvtCommit:
			name = "COMMIT"
		case EvtOverrun:
			name = "OVERRUN!"
		case EvtClear:
			name = "CLEAR"
		default:
			name = "UNKNOWN"
		}

		eng := "master"
		if evt.Engine == EngineSlave {
			eng = "slave"
		}

		debugPrintln("[FRAMES] " + name + " " + eng + " word=0x" + hex16(evt.Word))
	}
	debugPrintln("[FRAMES] === End Dump ===")
}

// ClearFrameRing clears the event buffer
func ClearFrameRing() {
	for i := range frameRing {
		frameRing[i] = FrameEvent{}
	}
	frameRingHead = 0
}
