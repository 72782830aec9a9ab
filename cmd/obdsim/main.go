package main

import (
	"encoding/json"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/obd"
)

// carState holds the drifting signal values of one simulated car.
type carState struct {
	VehicleID   string
	RPM         float64
	Speed       float64
	CoolantTemp float64
	Battery     float64
	EngineLoad  float64
	FuelLevel   float64
	DTCCodes    []string
}

var dtcPool = []string{"P0300", "P0420", "P0171", "P0455", "C1234"}

func newCarState(vehicleID string) *carState {
	return &carState{
		VehicleID:   vehicleID,
		RPM:         800,
		Speed:       0,
		CoolantTemp: 20 + rand.Float64()*10, // cold start
		Battery:     12.4 + rand.Float64()*0.4,
		EngineLoad:  15,
		FuelLevel:   30 + rand.Float64()*60,
	}
}

// drift nudges a value toward target with bounded random noise.
func drift(current, target, noise float64) float64 {
	return current + (target-current)*0.1 + (rand.Float64()*2-1)*noise
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// tick advances the car by one interval of driving.
func (s *carState) tick() {
	// Alternate between cruising and idling
	if rand.Float64() < 0.15 {
		s.Speed = drift(s.Speed, 0, 3)
	} else {
		s.Speed = drift(s.Speed, 40+rand.Float64()*60, 5)
	}
	s.Speed = clamp(s.Speed, 0, 160)

	if s.Speed < 2 {
		s.RPM = drift(s.RPM, 800, 40)
		s.EngineLoad = drift(s.EngineLoad, 15, 3)
	} else {
		s.RPM = drift(s.RPM, 1200+s.Speed*25, 120)
		s.EngineLoad = drift(s.EngineLoad, 25+s.Speed*0.4, 5)
	}
	s.RPM = clamp(s.RPM, 650, 6500)
	s.EngineLoad = clamp(s.EngineLoad, 5, 100)

	// Coolant warms up to operating temperature and stays there
	s.CoolantTemp = clamp(drift(s.CoolantTemp, 90, 0.8), 15, 115)

	// Alternator holds ~14.2V while the engine runs
	s.Battery = clamp(drift(s.Battery, 14.2, 0.05), 11.5, 14.8)

	s.FuelLevel = clamp(s.FuelLevel-rand.Float64()*0.05, 0, 100)

	// Rarely a trouble code appears and sticks for the session
	if len(s.DTCCodes) == 0 && rand.Float64() < 0.002 {
		s.DTCCodes = []string{dtcPool[rand.Intn(len(dtcPool))]}
		log.WithFields(log.Fields{
			"vehicle_id": s.VehicleID,
			"code":       s.DTCCodes[0],
		}).Warn("Simulated trouble code set")
	}
}

func (s *carState) snapshot() models.OBDSnapshot {
	return models.OBDSnapshot{
		VehicleID:      s.VehicleID,
		Timestamp:      time.Now(),
		RPM:            s.RPM,
		Speed:          s.Speed,
		CoolantTemp:    s.CoolantTemp,
		BatteryVoltage: s.Battery,
		EngineLoad:     s.EngineLoad,
		FuelLevel:      s.FuelLevel,
		DTCCodes:       s.DTCCodes,
	}
}

func vehicleIDs() []string {
	if raw := os.Getenv("SIM_VEHICLE_IDS"); raw != "" {
		ids := []string{}
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}

	size := 3
	if raw := os.Getenv("SIM_FLEET_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}
	ids := make([]string, size)
	for i := range ids {
		ids[i] = "sim-" + strconv.Itoa(i+1)
	}
	return ids
}

func main() {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "tcp://localhost:1883"
	}

	interval := 5 * time.Second
	if raw := os.Getenv("SIM_TICK_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("autocare-obdsim").
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).Fatal("Failed to connect to MQTT broker")
	}
	defer client.Disconnect(250)

	cars := []*carState{}
	for _, id := range vehicleIDs() {
		cars = append(cars, newCarState(id))
	}

	log.WithFields(log.Fields{
		"broker":   broker,
		"vehicles": len(cars),
		"interval": interval,
	}).Info("OBD simulator started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, car := range cars {
				car.tick()
				payload, err := json.Marshal(car.snapshot())
				if err != nil {
					log.WithError(err).Error("Failed to marshal telemetry frame")
					continue
				}
				topic := obd.TopicPrefix + car.VehicleID
				if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
					log.WithError(token.Error()).WithField("topic", topic).Warn("Publish failed")
				}
			}
		case <-stop:
			log.Info("OBD simulator stopping")
			return
		}
	}
}
