// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of an Event.
type Level int

const (
	LevelInfo Level = iota
	LevelCritical
)

func (l Level) String() string {
	if l == LevelCritical {
		return "critical"
	}
	return "info"
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*l = LevelInfo
	case "critical":
		*l = LevelCritical
	default:
		return fmt.Errorf("unknown level %q", b)
	}
	return nil
}

// Kind classifies an Event.
type Kind string

const (
	KindInit      Kind = "init"
	KindOrigin    Kind = "origin"
	KindInvalid   Kind = "invalid"
	KindFault     Kind = "fault"
	KindRecovered Kind = "recovered"
	KindTimeout   Kind = "timeout"
)

// Event is one notification from a sensor unit.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Kind    Kind      `json:"kind"`
	Sensor  string    `json:"sensor"`
	Message string    `json:"message"`
}

// NewEvent stamps a fresh event.
func NewEvent(t time.Time, level Level, kind Kind, sensor, msg string) Event {
	return Event{
		ID:      uuid.New(),
		Time:    t,
		Level:   level,
		Kind:    kind,
		Sensor:  sensor,
		Message: msg,
	}
}

// InnovationWidth is the fixed width of published innovation vectors.
const InnovationWidth = 6

// Innovation is the per-cycle residual diagnostic of one unit. Slots past
// the measurement dimension hold 0 residual and unit variance.
type Innovation struct {
	Sensor   string                   `json:"sensor"`
	Time     time.Time                `json:"time"`
	Dim      int                      `json:"dim"`
	Residual [InnovationWidth]float64 `json:"residual"`
	Variance [InnovationWidth]float64 `json:"variance"`
	Beta     float64                  `json:"beta"`
	Fault    bool                     `json:"fault"`
}

// Notifier receives unit events.
type Notifier interface {
	Notify(Event)
}

// Diagnostics receives innovation records.
type Diagnostics interface {
	PublishInnovation(Innovation)
}

type discard struct{}

func (discard) Notify(Event)                 {}
func (discard) PublishInnovation(Innovation) {}
