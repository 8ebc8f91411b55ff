package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultsWithBrokerOnly(t *testing.T) {
	cfg, err := Parse(strings.NewReader("MQTT_BROKER=tcp://localhost:1883\n"))
	require.NoError(t, err)

	want := Default()
	want.MQTTBroker = "tcp://localhost:1883"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_OverridesAndComments(t *testing.T) {
	in := `
# comment
MQTT_BROKER = tcp://broker:1883
TOPIC_VISION=drone/vision
ESTIMATOR_INTERVAL=20
HISTORY_STEP=25
MAX_DELAY=300
VISION_XY_STDDEV=0.2
VISION_DELAY=0.05
VISION_ASSUME_VALID=false
MOCAP_ENABLED=true
MOCAP_MAX_STD_DEV=3.5
DIAG_DB_PATH=/tmp/diag.db
`
	cfg, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, "drone/vision", cfg.TopicVision)
	assert.Equal(t, 20*time.Millisecond, cfg.EstimatorTick())
	assert.Equal(t, 25*time.Millisecond, cfg.HistoryStepDuration())
	assert.Equal(t, 300*time.Millisecond, cfg.MaxDelayDuration())
	assert.Equal(t, "/tmp/diag.db", cfg.DiagDBPath)

	assert.Equal(t, SensorConfig{
		Enabled:     true,
		XYStdDev:    0.2,
		ZStdDev:     0.5,
		Delay:       0.05,
		MaxStdDev:   100,
		AssumeValid: false,
	}, cfg.Vision)
	assert.Equal(t, 50*time.Millisecond, cfg.Vision.DelayDuration())
	assert.True(t, cfg.Mocap.Enabled)
	assert.Equal(t, 3.5, cfg.Mocap.MaxStdDev)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"missing broker":  "TOPIC_VISION=a\n",
		"no equals":       "MQTT_BROKER=x\nGARBAGE\n",
		"unknown key":     "MQTT_BROKER=x\nFOO=1\n",
		"unknown sensor":  "MQTT_BROKER=x\nVISION_FOO=1\n",
		"bad int":         "MQTT_BROKER=x\nHISTORY_LEN=ten\n",
		"bad float":       "MQTT_BROKER=x\nVISION_Z_STDDEV=abc\n",
		"bad bool":        "MQTT_BROKER=x\nMOCAP_ENABLED=maybe\n",
		"zero interval":   "MQTT_BROKER=x\nESTIMATOR_INTERVAL=0\n",
		"negative delay":  "MQTT_BROKER=x\nVISION_DELAY=-1\n",
		"zero ceiling":    "MQTT_BROKER=x\nMOCAP_MAX_STD_DEV=0\n",
		"port range":      "MQTT_BROKER=x\nWEB_SERVER_PORT=70000\n",
		"negative stddev": "MQTT_BROKER=x\nINITIAL_POS_STDDEV=-1\n",
		"negative floor":  "MQTT_BROKER=x\nVISION_XY_STDDEV=-0.1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestParse_ReportsLineNumber(t *testing.T) {
	_, err := Parse(strings.NewReader("MQTT_BROKER=x\n\n# c\nHISTORY_LEN=x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config line 4")
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "lpe_config.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.True(t, cfg.Vision.Enabled)
	assert.False(t, cfg.Mocap.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestInitGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.txt")
	require.NoError(t, os.WriteFile(path, []byte("MQTT_BROKER=tcp://a:1883\n"), 0o644))

	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, "tcp://a:1883", Get().MQTTBroker)

	// second call does not reload
	assert.NoError(t, InitGlobal(filepath.Join(t.TempDir(), "missing.txt")))
	assert.Equal(t, "tcp://a:1883", Get().MQTTBroker)
}
