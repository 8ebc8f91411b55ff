// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry delivers estimator events, innovations and estimates
// to logs and MQTT.
package telemetry

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
)

// Sink receives both event notifications and innovation diagnostics.
type Sink interface {
	estimator.Notifier
	estimator.Diagnostics
}

// Fanout forwards to every sink in order.
type Fanout []Sink

func (f Fanout) Notify(e estimator.Event) {
	for _, s := range f {
		s.Notify(e)
	}
}

func (f Fanout) PublishInnovation(in estimator.Innovation) {
	for _, s := range f {
		s.PublishInnovation(in)
	}
}

// LogSink writes events to a logger. Innovations are logged only while
// the sensor is faulted, to keep the log readable at loop rate.
type LogSink struct {
	Logger *log.Logger // nil uses the standard logger
}

func (l LogSink) printf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (l LogSink) Notify(e estimator.Event) {
	l.printf("[%s] %s: %s", e.Level, e.Sensor, e.Message)
}

func (l LogSink) PublishInnovation(in estimator.Innovation) {
	if !in.Fault {
		return
	}
	l.printf("[innovation] %s: beta=%.2f residual=%.3f", in.Sensor, in.Beta, in.Residual[:in.Dim])
}

// Publisher is the subset of mqtt.Client used for publishing.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes JSON payloads without waiting for delivery, so the
// estimator loop never blocks on the broker.
type MQTTSink struct {
	Client           Publisher
	TopicEvents      string
	TopicInnovations string
	TopicEstimate    string
}

func (m MQTTSink) Notify(e estimator.Event) {
	m.publish(m.TopicEvents, false, e)
}

func (m MQTTSink) PublishInnovation(in estimator.Innovation) {
	m.publish(m.TopicInnovations, false, in)
}

// PublishEstimate publishes a retained estimate snapshot.
func (m MQTTSink) PublishEstimate(est estimator.Estimate) {
	m.publish(m.TopicEstimate, true, est)
}

func (m MQTTSink) publish(topic string, retained bool, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("telemetry: json marshal error for %s: %v", topic, err)
		return
	}
	token := m.Client.Publish(topic, 0, retained, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Printf("telemetry: publish error on %s: %v", topic, err)
		}
	}()
}
