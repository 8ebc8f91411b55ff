package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/local_position_estimator/internal/config"
	"github.com/relabs-tech/local_position_estimator/internal/estimator"
	"github.com/relabs-tech/local_position_estimator/internal/gps"
	"github.com/relabs-tech/local_position_estimator/internal/odometry"
)

type recorder struct {
	events      []estimator.Event
	innovations []estimator.Innovation
}

func (r *recorder) Notify(e estimator.Event) { r.events = append(r.events, e) }
func (r *recorder) PublishInnovation(in estimator.Innovation) {
	r.innovations = append(r.innovations, in)
}

func TestNewEstimatorService_SensorsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MQTTBroker = "tcp://localhost:1883"

	svc, err := NewEstimatorService(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc.Vision)
	assert.Nil(t, svc.Mocap)
	assert.Len(t, svc.Estimator.Units(), 1)

	cfg.Mocap.Enabled = true
	svc, err = NewEstimatorService(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, svc.Estimator.Units(), 2)

	cfg.Vision.Enabled = false
	cfg.Mocap.Enabled = false
	_, err = NewEstimatorService(cfg, nil)
	assert.Error(t, err)
}

func TestEstimatorService_ConvergesOnStationaryTarget(t *testing.T) {
	cfg := config.Default()
	rec := &recorder{}
	svc, err := NewEstimatorService(cfg, rec)
	require.NoError(t, err)

	start := time.Now()
	svc.GPS.Update(gps.Fix{Latitude: 47.3977, Longitude: 8.5456, Altitude: 488, Validity: "A", Quality: "1"})

	// no time update runs, so the target has to hold still
	mock := odometry.NewMockSource(start)
	mock.Rate = 0
	tick := 10 * time.Millisecond
	for i := 1; i <= 300; i++ {
		now := start.Add(time.Duration(i) * tick)
		if i%5 == 0 {
			require.NoError(t, svc.Vision.Set(mock.Next(now.Add(-20*time.Millisecond))))
		}
		svc.Estimator.Update(now)
	}

	est := svc.Estimator.Estimate(start.Add(3 * time.Second))
	require.Len(t, est.Sensors, 1)
	assert.Equal(t, estimator.StateActive, est.Sensors[0].State)
	assert.Empty(t, est.Timeout)
	assert.True(t, est.Origin.GlobalSet)
	require.NotNil(t, est.Global)
	assert.NotEmpty(t, rec.innovations)
	assert.Equal(t, estimator.KindInit, rec.events[0].Kind)

	want := mock.Next(start.Add(3*time.Second - 20*time.Millisecond))
	assert.InDelta(t, want.X, est.Position[0], 0.5)
	assert.InDelta(t, want.Y, est.Position[1], 0.5)
}
