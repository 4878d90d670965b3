package domain

import "fmt"

// Dock is where the HUD overlay renders.
type Dock int32

const (
	DockCard Dock = iota
	DockTop
	DockBottomLeft
)

var dockNames = [...]string{
	DockCard:       "card",
	DockTop:        "top",
	DockBottomLeft: "bottom_left",
}

func (d Dock) String() string {
	if d < 0 || int(d) >= len(dockNames) {
		return fmt.Sprintf("Dock(%d)", int32(d))
	}
	return dockNames[d]
}

func (d Dock) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Viewport is what a viewer reports about its window.
type Viewport struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
}

// Landscape treats a square window as landscape.
func (v Viewport) Landscape() bool { return v.Width >= v.Height }
