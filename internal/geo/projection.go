// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geo converts between geodetic coordinates and the estimator's
// local tangent plane (x north, y east, metres).
package geo

import (
	"errors"
	"math"
	"time"
)

// EarthRadius is the mean Earth radius in metres used by the projection.
const EarthRadius = 6371000.0

// ErrNotInitialized is returned when projecting with an unset reference.
var ErrNotInitialized = errors.New("geo: projection reference not initialized")

// Projection is an azimuthal equidistant projection around a reference
// latitude/longitude. The zero value is uninitialized.
type Projection struct {
	latRad    float64
	lonRad    float64
	sinLat    float64
	cosLat    float64
	timestamp time.Time
	initDone  bool
}

// Init sets the reference point in decimal degrees.
func (p *Projection) Init(latDeg, lonDeg float64, t time.Time) {
	p.latRad = latDeg * math.Pi / 180
	p.lonRad = lonDeg * math.Pi / 180
	p.sinLat = math.Sin(p.latRad)
	p.cosLat = math.Cos(p.latRad)
	p.timestamp = t
	p.initDone = true
}

// Initialized reports whether Init has been called.
func (p *Projection) Initialized() bool { return p.initDone }

// Reference returns the reference point in decimal degrees.
func (p *Projection) Reference() (latDeg, lonDeg float64) {
	return p.latRad * 180 / math.Pi, p.lonRad * 180 / math.Pi
}

// Timestamp returns when the reference was set.
func (p *Projection) Timestamp() time.Time { return p.timestamp }

// Project maps a geodetic point to local x (north) / y (east) metres.
func (p *Projection) Project(latDeg, lonDeg float64) (x, y float64, err error) {
	if !p.initDone {
		return 0, 0, ErrNotInitialized
	}

	latRad := latDeg * math.Pi / 180
	lonRad := lonDeg * math.Pi / 180
	sinLat := math.Sin(latRad)
	cosLat := math.Cos(latRad)
	cosDLon := math.Cos(lonRad - p.lonRad)

	arg := p.sinLat*sinLat + p.cosLat*cosLat*cosDLon
	arg = math.Max(-1, math.Min(1, arg))
	c := math.Acos(arg)

	k := 1.0
	if math.Abs(c) > 1e-15 {
		k = c / math.Sin(c)
	}

	x = k * (p.cosLat*sinLat - p.sinLat*cosLat*cosDLon) * EarthRadius
	y = k * cosLat * math.Sin(lonRad-p.lonRad) * EarthRadius
	return x, y, nil
}

// Reproject maps local x/y metres back to decimal degrees.
func (p *Projection) Reproject(x, y float64) (latDeg, lonDeg float64, err error) {
	if !p.initDone {
		return 0, 0, ErrNotInitialized
	}

	xRad := x / EarthRadius
	yRad := y / EarthRadius
	c := math.Hypot(xRad, yRad)

	latRad, lonRad := p.latRad, p.lonRad
	if math.Abs(c) > 1e-15 {
		sinC := math.Sin(c)
		cosC := math.Cos(c)
		latRad = math.Asin(cosC*p.sinLat + xRad*sinC*p.cosLat/c)
		lonRad = p.lonRad + math.Atan2(yRad*sinC, c*p.cosLat*cosC-xRad*p.sinLat*sinC)
	}

	return latRad * 180 / math.Pi, lonRad * 180 / math.Pi, nil
}
