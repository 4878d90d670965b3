package hud

import "github.com/dkeye/Dash/internal/domain"

const msToKph = 3.6

// Normalize converts ground speed to km/h and renames the device fields the
// overlay knows under other names. Everything else passes through.
func Normalize(s domain.Snapshot) domain.HUDPayload {
	p := domain.HUDPayload{
		CPUTempC:       s.CPUTempC,
		MemPct:         s.MemPct,
		DiskPct:        s.DiskPct,
		DiskLabel:      s.DiskLabel,
		VSetKph:        s.VSetKph,
		Temp:           s.Temp,
		RedDot:         s.RedDot,
		TrafficLight:   s.TLight,
		GapDistance:    s.TFGap,
		GapBars:        s.TFBars,
		Gear:           s.Gear,
		GPSOk:          s.GPSOk,
		DriveMode:      s.DriveMode,
		SpeedLimitKph:  s.SpeedLimitKph,
		SpeedLimitOver: s.SpeedLimitOver,
		AutopilotMode:  s.APM,
	}
	if s.VEgo != nil {
		kph := *s.VEgo * msToKph
		p.VEgoKph = &kph
	}
	return p
}
