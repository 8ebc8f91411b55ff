// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import (
	"time"

	"github.com/relabs-tech/local_position_estimator/internal/geo"
)

// GeoPoint is a geodetic position in decimal degrees and metres.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// GlobalFrame is the global/local converter the estimator anchors to.
// ok is false while no global frame is available.
type GlobalFrame interface {
	GlobalReference() (ref GeoPoint, ok bool)
}

// Origin is the estimator's reference anchor. The global origin and the
// altitude origin are each set once, by whichever unit initializes first.
type Origin struct {
	projection geo.Projection
	globalAlt  float64
	originTime time.Time
	refTime    time.Time

	alt       float64
	altGlobal bool
	altInit   bool
}

// OriginInfo is a read-only view of Origin.
type OriginInfo struct {
	GlobalSet      bool      `json:"global_set"`
	Lat            float64   `json:"lat,omitempty"`
	Lon            float64   `json:"lon,omitempty"`
	Alt            float64   `json:"alt,omitempty"`
	OriginTime     time.Time `json:"origin_time,omitempty"`
	ReferenceTime  time.Time `json:"reference_time,omitempty"`
	AltitudeSet    bool      `json:"altitude_set"`
	AltitudeOrigin float64   `json:"altitude_origin"`
	AltitudeGlobal bool      `json:"altitude_global"`
}

// InitGlobal sets the global origin to ref if none is set yet and
// reports whether this call set it.
func (o *Origin) InitGlobal(ref GeoPoint, t time.Time) bool {
	if o.projection.Initialized() {
		return false
	}
	o.projection.Init(ref.Lat, ref.Lon, t)
	o.globalAlt = ref.Alt
	o.originTime = t
	return true
}

// InitAltitude sets the altitude origin if none is set yet and reports
// whether this call set it.
func (o *Origin) InitAltitude(alt float64, global bool) bool {
	if o.altInit {
		return false
	}
	o.alt = alt
	o.altGlobal = global
	o.altInit = true
	return true
}

// MarkReference records when the global reference was last read.
func (o *Origin) MarkReference(t time.Time) { o.refTime = t }

// GlobalInitialized reports whether the global origin is set.
func (o *Origin) GlobalInitialized() bool { return o.projection.Initialized() }

// Altitude returns the altitude origin.
func (o *Origin) Altitude() (alt float64, global, ok bool) {
	return o.alt, o.altGlobal, o.altInit
}

// ToGlobal converts a local position to geodetic coordinates.
func (o *Origin) ToGlobal(x, y, z float64) (GeoPoint, error) {
	lat, lon, err := o.projection.Reproject(x, y)
	if err != nil {
		return GeoPoint{}, err
	}
	// local z points down
	return GeoPoint{Lat: lat, Lon: lon, Alt: o.alt - z}, nil
}

// ToLocal converts geodetic coordinates to a local position.
func (o *Origin) ToLocal(p GeoPoint) (x, y, z float64, err error) {
	x, y, err = o.projection.Project(p.Lat, p.Lon)
	if err != nil {
		return 0, 0, 0, err
	}
	return x, y, o.alt - p.Alt, nil
}

// Info returns a snapshot of the origin.
func (o *Origin) Info() OriginInfo {
	info := OriginInfo{
		GlobalSet:      o.projection.Initialized(),
		ReferenceTime:  o.refTime,
		AltitudeSet:    o.altInit,
		AltitudeOrigin: o.alt,
		AltitudeGlobal: o.altGlobal,
	}
	if info.GlobalSet {
		info.Lat, info.Lon = o.projection.Reference()
		info.Alt = o.globalAlt
		info.OriginTime = o.originTime
	}
	return info
}
