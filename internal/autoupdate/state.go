package autoupdate

// State is the current position of the update cycle.
type State string

const (
	StateIdle              State = "idle"
	StateChecking          State = "checking"
	StateUpdateAvailable   State = "update-available"
	StateDownloading       State = "downloading"
	StateVerifying         State = "verifying"
	StateApplying          State = "applying"
	StateFallingBackToFull State = "falling-back-to-full"
	StateDone              State = "done"
	StateError             State = "error"
	StateNotAvailable      State = "not-available"
)

// Event types emitted to subscribers.
const (
	EventChecking           = "checking-for-update"
	EventUpdateAvailable    = "update-available"
	EventDownloadProgress   = "download-progress"
	EventUpdateDownloaded   = "update-downloaded"
	EventUpdateNotAvailable = "update-not-available"
	EventError              = "error"
)
