// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
)

// DefaultMaxAge is how long a fix stays usable as the global reference.
const DefaultMaxAge = 2 * time.Second

// Reference tracks the latest valid fix and offers it to the estimator as
// its global frame.
type Reference struct {
	MaxAge time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	fix      Fix
	received time.Time
	have     bool
}

// NewReference returns a reference without a fix.
func NewReference() *Reference {
	return &Reference{MaxAge: DefaultMaxAge, now: time.Now}
}

// Update stores f if it is valid and reports whether it was stored.
func (r *Reference) Update(f Fix) bool {
	if !f.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fix = f
	r.received = r.now()
	r.have = true
	return true
}

// Latest returns the last valid fix.
func (r *Reference) Latest() (Fix, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fix, r.have
}

// GlobalReference implements estimator.GlobalFrame. Fixes older than
// MaxAge are not offered.
func (r *Reference) GlobalReference() (estimator.GeoPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.have || (r.MaxAge > 0 && r.now().Sub(r.received) > r.MaxAge) {
		return estimator.GeoPoint{}, false
	}
	return estimator.GeoPoint{
		Lat: r.fix.Latitude,
		Lon: r.fix.Longitude,
		Alt: r.fix.Altitude,
	}, true
}

// HandleMessage is an mqtt.MessageHandler decoding a JSON Fix.
func (r *Reference) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	var f Fix
	if err := json.Unmarshal(msg.Payload(), &f); err != nil {
		log.Printf("gps: unmarshal error on %s: %v", msg.Topic(), err)
		return
	}
	r.Update(f)
}
