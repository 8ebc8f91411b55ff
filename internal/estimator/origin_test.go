package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrigin_SetOnce(t *testing.T) {
	var o Origin
	assert.False(t, o.GlobalInitialized())

	first := GeoPoint{Lat: 47.3977, Lon: 8.5456, Alt: 488}
	assert.True(t, o.InitGlobal(first, t0))
	assert.False(t, o.InitGlobal(GeoPoint{Lat: 1, Lon: 1, Alt: 1}, t0.Add(time.Second)))

	assert.True(t, o.InitAltitude(488, true))
	assert.False(t, o.InitAltitude(0, false))

	info := o.Info()
	assert.True(t, info.GlobalSet)
	assert.InDelta(t, first.Lat, info.Lat, 1e-12)
	assert.InDelta(t, first.Lon, info.Lon, 1e-12)
	assert.Equal(t, first.Alt, info.Alt)
	assert.Equal(t, t0, info.OriginTime)
	assert.True(t, info.AltitudeSet)
	assert.True(t, info.AltitudeGlobal)
	assert.Equal(t, 488.0, info.AltitudeOrigin)
}

func TestOrigin_LocalGlobalRoundTrip(t *testing.T) {
	var o Origin
	_, err := o.ToGlobal(1, 2, 3)
	assert.Error(t, err)

	require.True(t, o.InitGlobal(GeoPoint{Lat: 47.3977, Lon: 8.5456, Alt: 488}, t0))
	require.True(t, o.InitAltitude(488, true))

	g, err := o.ToGlobal(120, -45, -10)
	require.NoError(t, err)
	assert.InDelta(t, 498.0, g.Alt, 1e-9)
	assert.Greater(t, g.Lat, 47.3977)
	assert.Less(t, g.Lon, 8.5456)

	x, y, z, err := o.ToLocal(g)
	require.NoError(t, err)
	assert.InDelta(t, 120, x, 1e-6)
	assert.InDelta(t, -45, y, 1e-6)
	assert.InDelta(t, -10, z, 1e-9)
}

func TestHealth_BitsAreIndependent(t *testing.T) {
	var h Health
	h.SetFault(SensorVision, true)
	h.SetTimeout(SensorMocap, true)

	assert.True(t, h.Faulted(SensorVision))
	assert.False(t, h.Faulted(SensorMocap))
	assert.True(t, h.TimedOut(SensorMocap))
	assert.False(t, h.TimedOut(SensorVision))

	h.SetFault(SensorVision, false)
	assert.Equal(t, SensorMask(0), h.Fault)
	assert.Equal(t, []string{"mocap"}, h.Timeout.Names())
	assert.Equal(t, "vision|mocap", (SensorVision | SensorMocap).String())
	assert.Equal(t, "none", SensorMask(0).String())
}
