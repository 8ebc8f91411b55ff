// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/local_position_estimator/internal/config"
	"github.com/relabs-tech/local_position_estimator/internal/estimator"
	"github.com/relabs-tech/local_position_estimator/internal/gps"
	"github.com/relabs-tech/local_position_estimator/internal/odometry"
	"github.com/relabs-tech/local_position_estimator/internal/store"
	"github.com/relabs-tech/local_position_estimator/internal/telemetry"
)

// estimatePeriod is how often the estimate snapshot is published.
const estimatePeriod = 100 * time.Millisecond

// EstimatorService wires the estimator to its sensor sources.
type EstimatorService struct {
	Estimator *estimator.Estimator
	Vision    *odometry.Source // nil when disabled
	Mocap     *odometry.Source // nil when disabled
	GPS       *gps.Reference
}

// NewEstimatorService builds the estimator described by cfg. sink may be
// nil.
func NewEstimatorService(cfg *config.Config, sink telemetry.Sink) (*EstimatorService, error) {
	svc := &EstimatorService{GPS: gps.NewReference()}

	opts := estimator.Options{
		HistoryLen:      cfg.HistoryLen,
		HistoryStep:     cfg.HistoryStepDuration(),
		MaxDelay:        cfg.MaxDelayDuration(),
		InitialVariance: estimator.DefaultInitialVariance(cfg.InitialPosStdDev, cfg.InitialVelStdDev),
		Global:          svc.GPS,
	}
	if sink != nil {
		opts.Notifier = sink
		opts.Diagnostics = sink
	}

	est, err := estimator.New(opts)
	if err != nil {
		return nil, err
	}
	svc.Estimator = est

	if cfg.Vision.Enabled {
		svc.Vision = odometry.NewSource("vision")
		if _, err := est.AddSensor(odometry.VisionModel(cfg.Vision), svc.Vision); err != nil {
			return nil, err
		}
	}
	if cfg.Mocap.Enabled {
		svc.Mocap = odometry.NewSource("mocap")
		if _, err := est.AddSensor(odometry.MocapModel(cfg.Mocap), svc.Mocap); err != nil {
			return nil, err
		}
	}
	if len(est.Units()) == 0 {
		return nil, fmt.Errorf("no position sensor enabled (VISION_ENABLED, MOCAP_ENABLED)")
	}
	return svc, nil
}

// RunEstimator subscribes to the sensor topics and runs the estimator at
// ESTIMATOR_INTERVAL until SIGINT/SIGTERM.
func RunEstimator() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := connectMQTT("estimator", cfg.MQTTBroker, cfg.MQTTClientIDEstimator)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	mqttSink := telemetry.MQTTSink{
		Client:           client,
		TopicEvents:      cfg.TopicEvents,
		TopicInnovations: cfg.TopicInnovations,
		TopicEstimate:    cfg.TopicEstimate,
	}
	sinks := telemetry.Fanout{telemetry.LogSink{}, mqttSink}

	if cfg.DiagDBPath != "" {
		db, err := store.Open(cfg.DiagDBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("estimator: closing diagnostics db: %v", err)
			}
			if n := db.Dropped(); n > 0 {
				log.Printf("estimator: %d diagnostics rows dropped", n)
			}
		}()
		sinks = append(sinks, db)
		log.Printf("estimator: recording diagnostics to %s", cfg.DiagDBPath)
	}

	svc, err := NewEstimatorService(cfg, sinks)
	if err != nil {
		return err
	}

	if svc.Vision != nil {
		if err := subscribe("estimator", client, cfg.TopicVision, svc.Vision.HandleMessage); err != nil {
			return err
		}
	}
	if svc.Mocap != nil {
		if err := subscribe("estimator", client, cfg.TopicMocap, svc.Mocap.HandleMessage); err != nil {
			return err
		}
	}
	if err := subscribe("estimator", client, cfg.TopicGPS, svc.GPS.HandleMessage); err != nil {
		return err
	}

	sigCh := shutdownSignal()
	ticker := time.NewTicker(cfg.EstimatorTick())
	defer ticker.Stop()

	log.Printf("estimator: running every %v with %d sensor(s)", cfg.EstimatorTick(), len(svc.Estimator.Units()))

	var lastPublish time.Time
	for {
		select {
		case now := <-ticker.C:
			svc.Estimator.Update(now)
			if now.Sub(lastPublish) >= estimatePeriod {
				mqttSink.PublishEstimate(svc.Estimator.Estimate(now))
				lastPublish = now
			}
		case <-sigCh:
			log.Println("estimator: shutting down")
			return nil
		}
	}
}
