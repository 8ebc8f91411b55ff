// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package odometry carries external position measurements (visual
// odometry, motion capture) from MQTT into the estimator.
package odometry

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
)

// CovarianceLen is the length of the upper-triangular 6x6 pose covariance
// (x, y, z, roll, pitch, yaw), row-major.
const CovarianceLen = 21

// diagonal entries of x, y and z within the upper triangle
var covDiag = [3]int{0, 6, 11}

// Message is one position measurement as published on MQTT.
type Message struct {
	TimestampUS    int64     `json:"timestamp_us"` // capture time, unix microseconds
	X              float64   `json:"x"`            // north, m
	Y              float64   `json:"y"`            // east, m
	Z              float64   `json:"z"`            // down, m
	PoseCovariance []float64 `json:"pose_covariance,omitempty"`
}

// Time returns the capture time.
func (m Message) Time() time.Time { return time.UnixMicro(m.TimestampUS) }

// Validate checks the covariance length.
func (m Message) Validate() error {
	if n := len(m.PoseCovariance); n != 0 && n != CovarianceLen {
		return fmt.Errorf("pose covariance has %d entries, want %d", n, CovarianceLen)
	}
	return nil
}

// Sample converts m to an estimator sample. Without a covariance the
// variances are NaN.
func (m Message) Sample() estimator.Sample {
	s := estimator.Sample{Time: m.Time()}
	s.Value[0], s.Value[1], s.Value[2] = m.X, m.Y, m.Z
	for i := range s.Variance {
		s.Variance[i] = math.NaN()
	}
	if len(m.PoseCovariance) == CovarianceLen {
		for i, idx := range covDiag {
			s.Variance[i] = m.PoseCovariance[idx]
		}
	}
	return s
}

// Source caches the latest message of one sensor. It is safe for
// concurrent use by the MQTT callback and the estimator loop.
type Source struct {
	name string
	now  func() time.Time

	mu       sync.Mutex
	latest   estimator.Sample
	have     bool
	received uint64
	rejected uint64
}

// NewSource returns an empty source.
func NewSource(name string) *Source {
	return &Source{name: name, now: time.Now}
}

// Set stores m as the latest measurement. A zero timestamp is replaced by
// the receive time.
func (s *Source) Set(m Message) error {
	if err := m.Validate(); err != nil {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		return err
	}
	if m.TimestampUS == 0 {
		m.TimestampUS = s.now().UnixMicro()
	}
	sample := m.Sample()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = sample
	s.have = true
	s.received++
	return nil
}

// Latest implements estimator.Source.
func (s *Source) Latest() (estimator.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.have
}

// Counts returns how many messages were accepted and rejected.
func (s *Source) Counts() (received, rejected uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.rejected
}

// HandleMessage is an mqtt.MessageHandler decoding a JSON Message.
func (s *Source) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	var m Message
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		log.Printf("%s: unmarshal error on %s: %v", s.name, msg.Topic(), err)
		return
	}
	if err := s.Set(m); err != nil {
		log.Printf("%s: %v", s.name, err)
	}
}
