// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/local_position_estimator/internal/config"
	"github.com/relabs-tech/local_position_estimator/internal/odometry"
	"github.com/relabs-tech/local_position_estimator/internal/telemetry"
)

// RunMockConsole runs the estimator in-process against a hovering mock
// vision source and prints the estimate, without MQTT or config file.
func RunMockConsole() error {
	cfg := config.Default()
	svc, err := NewEstimatorService(cfg, telemetry.LogSink{})
	if err != nil {
		return err
	}

	src := odometry.NewMockSource(time.Now())
	src.Rate = 0

	ticker := time.NewTicker(cfg.EstimatorTick())
	defer ticker.Stop()

	var lastSample, lastPrint time.Time
	for now := range ticker.C {
		if now.Sub(lastSample) >= time.Duration(cfg.ProducerInterval)*time.Millisecond {
			if err := svc.Vision.Set(src.Next(now)); err != nil {
				return err
			}
			lastSample = now
		}
		svc.Estimator.Update(now)

		if now.Sub(lastPrint) >= estimatePeriod {
			fmt.Println(formatEstimate(svc.Estimator.Estimate(now)))
			lastPrint = now
		}
	}
	return nil
}
