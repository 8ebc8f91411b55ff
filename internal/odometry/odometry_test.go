package odometry

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/local_position_estimator/internal/config"
	"github.com/relabs-tech/local_position_estimator/internal/estimator"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMessage_SampleWithCovariance(t *testing.T) {
	cov := make([]float64, CovarianceLen)
	cov[0], cov[6], cov[11] = 0.04, 0.09, 0.16
	cov[1] = 123 // off-diagonal, ignored

	m := Message{TimestampUS: 1_700_000_000_123_456, X: 1, Y: -2, Z: -3, PoseCovariance: cov}
	s := m.Sample()

	assert.Equal(t, time.UnixMicro(1_700_000_000_123_456), s.Time)
	assert.Equal(t, []float64{1, -2, -3}, s.Value[:3])
	assert.Equal(t, []float64{0.04, 0.09, 0.16}, s.Variance[:3])
	assert.True(t, math.IsNaN(s.Variance[3]))
}

func TestMessage_SampleWithoutCovariance(t *testing.T) {
	s := Message{X: 1}.Sample()
	for i := range s.Variance {
		assert.True(t, math.IsNaN(s.Variance[i]), "variance %d", i)
	}
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, Message{}.Validate())
	assert.NoError(t, Message{PoseCovariance: make([]float64, CovarianceLen)}.Validate())
	assert.Error(t, Message{PoseCovariance: []float64{1, 2, 3}}.Validate())
}

func TestSource_HandleMessage(t *testing.T) {
	src := NewSource("vision")
	_, ok := src.Latest()
	assert.False(t, ok)

	payload := []byte(`{"timestamp_us": 1000000, "x": 1.5, "y": 2.5, "z": -0.5}`)
	src.HandleMessage(nil, fakeMessage{topic: "lpe/vision", payload: payload})

	s, ok := src.Latest()
	require.True(t, ok)
	assert.Equal(t, time.UnixMicro(1000000), s.Time)
	assert.Equal(t, 1.5, s.Value[0])
	assert.Equal(t, -0.5, s.Value[2])

	src.HandleMessage(nil, fakeMessage{topic: "lpe/vision", payload: []byte("{not json")})
	src.HandleMessage(nil, fakeMessage{topic: "lpe/vision", payload: []byte(`{"x":1,"pose_covariance":[1]}`)})

	received, rejected := src.Counts()
	assert.Equal(t, uint64(1), received)
	assert.Equal(t, uint64(2), rejected)

	// rejected messages keep the previous sample
	s2, _ := src.Latest()
	assert.Equal(t, s.Time, s2.Time)
}

func TestSource_ZeroTimestampUsesReceiveTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	src := NewSource("mocap")
	src.now = func() time.Time { return now }

	require.NoError(t, src.Set(Message{X: 1}))
	s, _ := src.Latest()
	assert.True(t, now.Equal(s.Time))
}

func TestSource_ConcurrentAccess(t *testing.T) {
	src := NewSource("vision")
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = src.Set(Message{TimestampUS: int64(i*1000 + j + 1), X: float64(j)})
				src.Latest()
			}
		}(i)
	}
	wg.Wait()

	received, _ := src.Counts()
	assert.Equal(t, uint64(400), received)
}

func TestModels_AreValid(t *testing.T) {
	cfg := config.Default()

	vision := VisionModel(cfg.Vision)
	require.NoError(t, vision.Validate(estimator.NumStates))
	assert.Equal(t, 3, vision.Dim())
	assert.Equal(t, 0.1, vision.Axes[0].FloorStdDev)
	assert.Equal(t, 0.5, vision.Axes[2].FloorStdDev)
	assert.Equal(t, estimator.Vertical, vision.Axes[2].Group)
	assert.Equal(t, VisionTimeout, vision.Timeout)
	assert.Zero(t, vision.FixedDelay)

	cfg.Mocap.Delay = 0.02
	mocap := MocapModel(cfg.Mocap)
	require.NoError(t, mocap.Validate(estimator.NumStates))
	assert.Equal(t, estimator.SensorMocap, mocap.Sensor)
	assert.Equal(t, MocapInitCount, mocap.RequiredInitCount)
	assert.Equal(t, 20*time.Millisecond, mocap.FixedDelay)
}

func TestMockSource_Circle(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m := NewMockSource(start)

	for _, dt := range []time.Duration{0, time.Second, 7 * time.Second} {
		msg := m.Next(start.Add(dt))
		assert.InDelta(t, m.Radius, math.Hypot(msg.X, msg.Y), 1e-9)
		assert.InDelta(t, -m.Altitude, msg.Z, 0.1+1e-9)
		require.NoError(t, msg.Validate())
	}

	raw, err := json.Marshal(m.Next(start))
	require.NoError(t, err)
	var back Message
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.InDelta(t, 0.0025, back.Sample().Variance[0], 1e-12)

	m.StdDev = 0
	assert.Nil(t, m.Next(start).PoseCovariance)
}
