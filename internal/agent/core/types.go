package core

// Position is one position sample from the vehicle.
// Lat/Lon are WGS84 degrees; altitudes are meters. North/East/Down are the
// local NED offsets relative to the calibrated origin (Down is negative when
// above the origin).
type Position struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltMSL      float64 `json:"alt_msl"`
	AltRelative float64 `json:"alt_relative"`
	North       float64 `json:"north"`
	East        float64 `json:"east"`
	Down        float64 `json:"down"`
}

// Attitude is one attitude sample, Euler angles in degrees.
type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Battery is one battery status sample.
type Battery struct {
	Voltage          float64 `json:"voltage"`
	RemainingPercent float64 `json:"remaining_percent"`
}

// GPSInfo is one GPS status sample.
type GPSInfo struct {
	Satellites int    `json:"satellites"`
	FixType    string `json:"fix_type"` // "none", "2d", "3d", "rtk"
}

// Origin is the local reference point, frozen from the first valid GPS fix
// of a connection session.
type Origin struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Valid reports whether a fix is acceptable for origin calibration.
// Zero island (0,0) readings and out-of-bounds coordinates are rejected.
func (o Origin) Valid() bool {
	if o.Lat == 0 && o.Lon == 0 {
		return false
	}
	if o.Lat < -90 || o.Lat > 90 {
		return false
	}
	if o.Lon < -180 || o.Lon > 180 {
		return false
	}
	return true
}
