package gps

import (
	nmea "github.com/adrianmo/go-nmea"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// RMC fills time, position, speed and validity; GGA adds altitude and
// fix quality.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	Altitude   float64 `json:"alt"`         // m above mean sea level
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void), etc.
	Quality    string  `json:"quality"`     // GGA fix quality, "0" = invalid
	Satellites int64   `json:"satellites"`
	HDOP       float64 `json:"hdop"`
}

// Apply merges an RMC or GGA sentence into f and reports whether the
// sentence was used.
func (f *Fix) Apply(s nmea.Sentence) bool {
	switch m := s.(type) {
	case nmea.RMC:
		f.Time = m.Time.String()
		f.Date = m.Date.String()
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.SpeedKnots = m.Speed
		f.CourseDeg = m.Course
		f.Validity = m.Validity
		return true
	case nmea.GGA:
		f.Time = m.Time.String()
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.Altitude = m.Altitude
		f.Quality = m.FixQuality
		f.Satellites = m.NumSatellites
		f.HDOP = m.HDOP
		return true
	default:
		return false
	}
}

// Valid reports whether both the RMC status and the GGA fix quality
// indicate a usable 3D position.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC && f.Quality != "" && f.Quality != nmea.Invalid
}
