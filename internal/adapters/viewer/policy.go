package viewer

type BackpressureAction int

const (
	KickViewer BackpressureAction = iota
	DropFrame
)

// Policy decides what happens when a viewer cannot keep up.
type Policy interface {
	OnBackpressure(token, frameType string) BackpressureAction
}

// SimplePolicy drops HUD frames, since the next one supersedes them, and
// kicks viewers that miss dock or status updates. The browser reconnects
// and gets the current state on join.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(_ string, frameType string) BackpressureAction {
	if frameType == TypeHUD {
		return DropFrame
	}
	return KickViewer
}
