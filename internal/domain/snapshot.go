package domain

// DriveMode is the longitudinal personality shown on the HUD.
type DriveMode struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// TargetSpeed is the speed the planner is currently steering towards and why.
type TargetSpeed struct {
	Speed   float64 `json:"speed"`
	Source  string  `json:"source"`
	IsDecel bool    `json:"is_decel"`
}

// Snapshot is one telemetry message as the device sends it.
// Absent or null fields stay nil.
type Snapshot struct {
	TS             *float64     `json:"ts"`
	VEgo           *float64     `json:"vEgo"` // m/s
	VSetKph        *float64     `json:"vSetKph"`
	Gear           *string      `json:"gear"`
	GPSOk          *bool        `json:"gpsOk"`
	CPUTempC       *float64     `json:"cpuTempC"`
	MemPct         *float64     `json:"memPct"`
	DiskPct        *float64     `json:"diskPct"`
	DiskLabel      *string      `json:"diskLabel"`
	TFGap          *float64     `json:"tfGap"`
	TFBars         *float64     `json:"tfBars"`
	DriveMode      *DriveMode   `json:"driveMode"`
	TLight         *string      `json:"tlight"`
	RedDot         *bool        `json:"redDot"`
	Temp           *TargetSpeed `json:"temp"`
	SpeedLimitKph  *float64     `json:"speedLimitKph"`
	SpeedLimitOver *bool        `json:"speedLimitOver"`
	APM            *string      `json:"apm"`
}

// HUDPayload is what the render sink paints.
type HUDPayload struct {
	CPUTempC       *float64     `json:"cpuTempC"`
	MemPct         *float64     `json:"memPct"`
	DiskPct        *float64     `json:"diskPct"`
	DiskLabel      *string      `json:"diskLabel"`
	VEgoKph        *float64     `json:"vEgoKph"`
	VSetKph        *float64     `json:"vSetKph"`
	Temp           *TargetSpeed `json:"temp"`
	RedDot         *bool        `json:"redDot"`
	TrafficLight   *string      `json:"trafficLight"`
	GapDistance    *float64     `json:"gapDistance"`
	GapBars        *float64     `json:"gapBars"`
	Gear           *string      `json:"gear"`
	GPSOk          *bool        `json:"gpsOk"`
	DriveMode      *DriveMode   `json:"driveMode"`
	SpeedLimitKph  *float64     `json:"speedLimitKph"`
	SpeedLimitOver *bool        `json:"speedLimitOver"`
	AutopilotMode  *string      `json:"autopilotMode"`
}
