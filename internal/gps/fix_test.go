package gps

import (
	"errors"
	"strings"
	"testing"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sentenceGGA = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	sentenceRMC = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
)

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "lpe/gps" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func parse(t *testing.T, line string) nmea.Sentence {
	t.Helper()
	s, err := nmea.Parse(line)
	require.NoError(t, err)
	return s
}

func TestFix_ApplyMergesRMCAndGGA(t *testing.T) {
	var f Fix
	assert.False(t, f.Valid())

	require.True(t, f.Apply(parse(t, sentenceRMC)))
	assert.InDelta(t, 48.1173, f.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, f.Longitude, 1e-6)
	assert.InDelta(t, 22.4, f.SpeedKnots, 1e-9)
	assert.InDelta(t, 84.4, f.CourseDeg, 1e-9)
	assert.Equal(t, "A", f.Validity)
	assert.False(t, f.Valid(), "no GGA yet")

	require.True(t, f.Apply(parse(t, sentenceGGA)))
	assert.InDelta(t, 545.4, f.Altitude, 1e-9)
	assert.Equal(t, "1", f.Quality)
	assert.Equal(t, int64(8), f.Satellites)
	assert.InDelta(t, 0.9, f.HDOP, 1e-9)
	assert.True(t, f.Valid())
}

func TestFix_ApplyIgnoresOtherSentences(t *testing.T) {
	var f Fix
	gsa := parse(t, "$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39")
	assert.False(t, f.Apply(gsa))
	assert.Equal(t, Fix{}, f)
}

func TestScan_EmitsOnRMC(t *testing.T) {
	in := strings.Join([]string{
		"garbage",
		sentenceGGA,
		"$GPRMC,broken*00",
		sentenceRMC,
		"",
		sentenceRMC,
	}, "\r\n")

	var got []Fix
	require.NoError(t, Scan(strings.NewReader(in), func(f Fix) { got = append(got, f) }))
	require.Len(t, got, 2)
	assert.True(t, got[0].Valid())
	assert.InDelta(t, 545.4, got[0].Altitude, 1e-9)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("port closed") }

func TestScan_ReturnsReadError(t *testing.T) {
	err := Scan(failingReader{}, func(Fix) {})
	assert.EqualError(t, err, "port closed")
}

func TestReference_GlobalReference(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := NewReference()
	r.now = func() time.Time { return now }

	_, ok := r.GlobalReference()
	assert.False(t, ok)

	assert.False(t, r.Update(Fix{Validity: "V", Quality: "1"}))
	assert.False(t, r.Update(Fix{Validity: "A", Quality: "0"}))

	var f Fix
	f.Apply(parse(t, sentenceRMC))
	f.Apply(parse(t, sentenceGGA))
	require.True(t, r.Update(f))

	ref, ok := r.GlobalReference()
	require.True(t, ok)
	assert.InDelta(t, 48.1173, ref.Lat, 1e-6)
	assert.InDelta(t, 11.516667, ref.Lon, 1e-6)
	assert.InDelta(t, 545.4, ref.Alt, 1e-9)

	now = now.Add(DefaultMaxAge + time.Millisecond)
	_, ok = r.GlobalReference()
	assert.False(t, ok, "stale fix")

	latest, ok := r.Latest()
	assert.True(t, ok)
	assert.Equal(t, f, latest)
}

func TestReference_HandleMessage(t *testing.T) {
	r := NewReference()
	r.HandleMessage(nil, fakeMessage{payload: []byte(`{"lat":47.39,"lon":8.54,"alt":488,"validity":"A","quality":"1"}`)})
	r.HandleMessage(nil, fakeMessage{payload: []byte(`nope`)})

	ref, ok := r.GlobalReference()
	require.True(t, ok)
	assert.Equal(t, 488.0, ref.Alt)
}
