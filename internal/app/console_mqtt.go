package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
	"github.com/relabs-tech/local_position_estimator/internal/gps"
)

func formatEstimate(e estimator.Estimate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[EST ]  x=%7.2f y=%7.2f z=%7.2f  vx=%6.2f vy=%6.2f vz=%6.2f  std=%.2f/%.2f/%.2f",
		e.Position[0], e.Position[1], e.Position[2],
		e.Velocity[0], e.Velocity[1], e.Velocity[2],
		e.PositionStdDev[0], e.PositionStdDev[1], e.PositionStdDev[2])
	if e.Global != nil {
		fmt.Fprintf(&b, "  lat=%.6f lon=%.6f alt=%.1f", e.Global.Lat, e.Global.Lon, e.Global.Alt)
	}
	for _, s := range e.Sensors {
		fmt.Fprintf(&b, "  %s=%s", s.Sensor, s.State)
	}
	return b.String()
}

func formatEvent(e estimator.Event) string {
	return fmt.Sprintf("[EVT ]  %s %-8s %-9s %s", e.Time.Format("15:04:05.000"), e.Level, e.Kind, e.Message)
}

func formatInnovation(in estimator.Innovation) string {
	n := min(max(in.Dim, 0), estimator.InnovationWidth)
	return fmt.Sprintf("[INNO]  %s beta=%6.2f fault=%t residual=%.3f", in.Sensor, in.Beta, in.Fault, in.Residual[:n])
}

func formatFix(f gps.Fix) string {
	return fmt.Sprintf(
		"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f alt=%.1f sats=%d hdop=%.1f validity=%s quality=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.Altitude, f.Satellites, f.HDOP, f.Validity, f.Quality,
	)
}

// printHandler decodes JSON into T and prints it with format.
func printHandler[T any](out io.Writer, name string, format func(T) string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("console: %s unmarshal error: %v", name, err)
			return
		}
		fmt.Fprintln(out, format(v))
	}
}

func RunConsoleMQTT() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{cfg.TopicEstimate, printHandler(os.Stdout, "estimate", formatEstimate)},
		{cfg.TopicEvents, printHandler(os.Stdout, "event", formatEvent)},
		{cfg.TopicInnovations, printHandler(os.Stdout, "innovation", formatInnovation)},
		{cfg.TopicGPS, printHandler(os.Stdout, "gps", formatFix)},
	}
	for _, s := range subs {
		if err := subscribe("console", client, s.topic, s.handler); err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	<-shutdownSignal()

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
