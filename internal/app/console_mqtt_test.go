package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
	"github.com/relabs-tech/local_position_estimator/internal/gps"
)

func TestConsoleFormatting(t *testing.T) {
	est := estimator.Estimate{
		Position: [3]float64{1, 2, -3},
		Global:   &estimator.GeoPoint{Lat: 47.3977, Lon: 8.5456, Alt: 491},
		Sensors:  []estimator.Status{{Sensor: "vision", State: estimator.StateActive}},
	}
	line := formatEstimate(est)
	assert.Contains(t, line, "x=   1.00 y=   2.00 z=  -3.00")
	assert.Contains(t, line, "lat=47.397700")
	assert.Contains(t, line, "vision=active")

	ev := estimator.NewEvent(time.Date(2026, 3, 14, 12, 0, 1, 0, time.UTC),
		estimator.LevelInfo, estimator.KindFault, "vision", "vision position fault, beta 99.00")
	assert.Contains(t, formatEvent(ev), "12:00:01.000 info")

	in := estimator.Innovation{Sensor: "vision", Dim: 2, Residual: [6]float64{0.5, -0.25, 9}}
	assert.Contains(t, formatInnovation(in), "residual=[0.500 -0.250]")
	assert.NotPanics(t, func() { formatInnovation(estimator.Innovation{Dim: 42}) })

	assert.Contains(t, formatFix(gps.Fix{Latitude: 48.1173, Satellites: 8}), "lat=48.117300")
}

func TestPrintHandler(t *testing.T) {
	var out bytes.Buffer
	h := printHandler(&out, "gps", formatFix)

	h(nil, fakeMessage{payload: []byte(`{"lat":1.5,"validity":"A"}`)})
	h(nil, fakeMessage{payload: []byte(`{`)})

	assert.Contains(t, out.String(), "lat=1.500000")
	assert.Contains(t, out.String(), "validity=A")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("\n")))
}
