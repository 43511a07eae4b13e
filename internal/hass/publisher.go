package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kmansel/mobilelink/internal/mobilelink"
)

const (
	defaultDiscoveryPrefix = "homeassistant"
	defaultStatePrefix     = "mobilelink"
)

// Publisher implements coordinator.Publisher: after every refresh it emits
// retained discovery configs plus per-tank state and availability topics.
type Publisher struct {
	conn            Conn
	discoveryPrefix string
	statePrefix     string
	log             *zap.Logger

	// Discovery configs are retained by the broker, but re-publishing each
	// cycle keeps them alive across broker wipes; this tracks whether the
	// log should announce a new tank. One publisher is shared by every
	// account's coordinator goroutine, so access is guarded.
	mu        sync.Mutex
	announced map[string]bool
}

func NewPublisher(conn Conn, discoveryPrefix, statePrefix string, log *zap.Logger) *Publisher {
	if discoveryPrefix == "" {
		discoveryPrefix = defaultDiscoveryPrefix
	}
	if statePrefix == "" {
		statePrefix = defaultStatePrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		conn:            conn,
		discoveryPrefix: discoveryPrefix,
		statePrefix:     statePrefix,
		log:             log,
		announced:       make(map[string]bool),
	}
}

func (p *Publisher) PublishTanks(_ context.Context, account string, tanks map[int64]mobilelink.PropaneTank) error {
	slug := slugify(account)
	for _, tank := range tanks {
		objectID := fmt.Sprintf("mobilelink_%s_%d", slug, tank.ApparatusID)

		if p.firstSeen(objectID) {
			p.log.Info("announcing tank to home assistant",
				zap.Int64("apparatus_id", tank.ApparatusID),
				zap.String("name", tank.Name))
		}

		for _, sensor := range sensorConfigs(p.discoveryPrefix, p.statePrefix, slug, objectID, tank) {
			if err := p.conn.Publish(sensor.topic, true, sensor.payload); err != nil {
				return fmt.Errorf("publish discovery config: %w", err)
			}
		}

		if err := p.conn.Publish(availabilityTopic(p.statePrefix, slug, tank.ApparatusID), true, []byte(availabilityPayload(tank))); err != nil {
			return fmt.Errorf("publish availability: %w", err)
		}

		state, err := json.Marshal(tank)
		if err != nil {
			return fmt.Errorf("encode tank state: %w", err)
		}
		if err := p.conn.Publish(stateTopic(p.statePrefix, slug, tank.ApparatusID), true, state); err != nil {
			return fmt.Errorf("publish state: %w", err)
		}
	}
	return nil
}

func (p *Publisher) firstSeen(objectID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.announced[objectID] {
		return false
	}
	p.announced[objectID] = true
	return true
}

type discoveryMessage struct {
	topic   string
	payload []byte
}

// sensorConfigs builds the HA discovery documents for one tank: the fuel
// level sensor plus battery and monitor status companions.
func sensorConfigs(discoveryPrefix, statePrefix, slug, objectID string, tank mobilelink.PropaneTank) []discoveryMessage {
	device := map[string]any{
		"identifiers":  []string{objectID},
		"name":         tank.Name,
		"manufacturer": "Generac",
		"model":        deviceModel(tank),
	}
	state := stateTopic(statePrefix, slug, tank.ApparatusID)
	availability := availabilityTopic(statePrefix, slug, tank.ApparatusID)

	sensors := []struct {
		suffix   string
		name     string
		template string
		unit     string
		icon     string
	}{
		{"fuel", tank.Name + " Propane", "{{ value_json.fuel_level_percent }}", "%", "mdi:gas-cylinder"},
		{"battery", tank.Name + " Battery", "{{ value_json.device.battery_level }}", "", "mdi:battery"},
		{"status", tank.Name + " Status", "{{ value_json.device.status }}", "", ""},
	}

	messages := make([]discoveryMessage, 0, len(sensors))
	for _, sensor := range sensors {
		uniqueID := objectID + "_" + sensor.suffix
		config := map[string]any{
			"name":               sensor.name,
			"unique_id":          uniqueID,
			"state_topic":        state,
			"value_template":     sensor.template,
			"availability_topic": availability,
			"device":             device,
		}
		if sensor.unit != "" {
			config["unit_of_measurement"] = sensor.unit
		}
		if sensor.icon != "" {
			config["icon"] = sensor.icon
		}
		payload, _ := json.Marshal(config)
		messages = append(messages, discoveryMessage{
			topic:   fmt.Sprintf("%s/sensor/%s/config", discoveryPrefix, uniqueID),
			payload: payload,
		})
	}
	return messages
}

func deviceModel(tank mobilelink.PropaneTank) string {
	if tank.Device.DeviceType != "" {
		return tank.Device.DeviceType
	}
	return "Mobile Link Propane Monitor"
}

func stateTopic(prefix, slug string, apparatusID int64) string {
	return fmt.Sprintf("%s/%s/%d/state", prefix, slug, apparatusID)
}

func availabilityTopic(prefix, slug string, apparatusID int64) string {
	return fmt.Sprintf("%s/%s/%d/availability", prefix, slug, apparatusID)
}

// availabilityPayload treats unknown connectivity as online: partial
// telemetry beats marking a tank dead.
func availabilityPayload(tank mobilelink.PropaneTank) string {
	if tank.IsConnected != nil && !*tank.IsConnected {
		return "offline"
	}
	return "online"
}

func slugify(account string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(account) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
