package app

import (
	"encoding/json"
	"log"
	"time"

	"github.com/relabs-tech/local_position_estimator/internal/odometry"
)

// RunOdometryProducer publishes a mock circular trajectory on TOPIC_VISION
// every PRODUCER_INTERVAL until SIGINT/SIGTERM.
func RunOdometryProducer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := connectMQTT("producer", cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src := odometry.NewMockSource(time.Now())
	ticker := time.NewTicker(time.Duration(cfg.ProducerInterval) * time.Millisecond)
	defer ticker.Stop()
	sigCh := shutdownSignal()

	for {
		select {
		case t := <-ticker.C:
			msg := src.Next(t)
			payload, err := json.Marshal(msg)
			if err != nil {
				log.Printf("producer: json marshal error: %v", err)
				continue
			}

			token := client.Publish(cfg.TopicVision, 0, false, payload)
			token.Wait()
			if token.Error() != nil {
				log.Printf("producer: publish error: %v", token.Error())
				continue
			}
		case <-sigCh:
			log.Println("producer: shutting down")
			return nil
		}
	}
}
