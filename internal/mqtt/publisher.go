package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/micro-ha/zyxel-ap/addon/internal/config"
	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

// StateSource provides poll results for sensor and switch state
// publishing. The concrete service is wired in main.go to avoid
// coupling the MQTT package to the poll loop.
type StateSource interface {
	LatestSnapshot() (*zyxel.Snapshot, model.ClientCounts, bool)
	GuestSSIDState(ctx context.Context) (on bool, known bool, err error)
}

// Controller executes the AP control operations behind the HA switch
// and button entities.
type Controller interface {
	SetRadio(ctx context.Context, slot int, active bool) error
	SetGuestSSID(ctx context.Context, on bool) error
	Reboot(ctx context.Context) error
}

// Publisher manages the MQTT connection, publishes HA discovery
// config messages on (re-)connect, subscribes to the switch and
// button command topics, and runs a periodic loop that pushes sensor
// state updates to the broker.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	source     StateSource
	control    Controller
	refresh    func()
	logger     *slog.Logger
	cm         *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection and publish loop. refresh is invoked after
// every accepted command so the next poll reflects the change quickly.
func New(cfg config.MQTTConfig, instanceID string, source StateSource, control Controller, refresh func(), logger *slog.Logger) *Publisher {
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		source:     source,
		control:    control,
		refresh:    refresh,
		logger:     logger,
	}
}

// Start connects to the MQTT broker and begins the periodic publish
// loop. It blocks until ctx is cancelled. On every (re-)connect it
// publishes discovery configs, re-subscribes the command topics, and
// sends a birth message.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishDiscovery(ctx, cm)
			p.subscribeCommands(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "zyxel-ap-" + p.cfg.DeviceName,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					p.handleCommand(pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop gracefully disconnects by publishing an "offline" availability
// message before closing the MQTT connection.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

// --- Topic helpers ---

func (p *Publisher) baseTopic() string {
	return "zyxel_ap/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/state"
}

func (p *Publisher) commandTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/set"
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return p.cfg.DiscoveryPrefix + "/" + component + "/" + p.cfg.DeviceName + "/" + entity + "/config"
}

// --- Discovery ---

func (p *Publisher) deviceInfo() DeviceInfo {
	var deviceModel, firmware string
	if snapshot, _, ok := p.source.LatestSnapshot(); ok {
		deviceModel = snapshot.Device.Model
		firmware = snapshot.Device.Firmware
	}
	return NewDeviceInfo(p.instanceID, p.cfg.DeviceName, deviceModel, firmware)
}

type sensorDef struct {
	entitySuffix string
	config       SensorConfig
}

func (p *Publisher) sensorDefinitions() []sensorDef {
	avail := p.availabilityTopic()
	device := p.deviceInfo()
	return []sensorDef{
		{
			entitySuffix: "uptime",
			config: SensorConfig{
				Name:              device.Name + " Uptime",
				UniqueID:          p.instanceID + "_uptime",
				StateTopic:        p.stateTopic("uptime"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:clock-outline",
				UnitOfMeasurement: "s",
				DeviceClass:       "duration",
				EntityCategory:    "diagnostic",
			},
		},
		{
			entitySuffix: "cpu_usage",
			config: SensorConfig{
				Name:              device.Name + " CPU Usage",
				UniqueID:          p.instanceID + "_cpu_usage",
				StateTopic:        p.stateTopic("cpu_usage"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:cpu-32-bit",
				UnitOfMeasurement: "%",
				StateClass:        "measurement",
			},
		},
		{
			entitySuffix: "memory_usage",
			config: SensorConfig{
				Name:              device.Name + " Memory Usage",
				UniqueID:          p.instanceID + "_memory_usage",
				StateTopic:        p.stateTopic("memory_usage"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:memory",
				UnitOfMeasurement: "%",
				StateClass:        "measurement",
			},
		},
		{
			entitySuffix: "clients_total",
			config: SensorConfig{
				Name:              device.Name + " Connected Clients",
				UniqueID:          p.instanceID + "_clients_total",
				StateTopic:        p.stateTopic("clients_total"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:account-multiple",
				StateClass:        "measurement",
			},
		},
		{
			entitySuffix: "clients_24g",
			config: SensorConfig{
				Name:              device.Name + " Clients 2.4GHz",
				UniqueID:          p.instanceID + "_clients_24g",
				StateTopic:        p.stateTopic("clients_24g"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:wifi",
				StateClass:        "measurement",
			},
		},
		{
			entitySuffix: "clients_5g",
			config: SensorConfig{
				Name:              device.Name + " Clients 5GHz",
				UniqueID:          p.instanceID + "_clients_5g",
				StateTopic:        p.stateTopic("clients_5g"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:wifi",
				StateClass:        "measurement",
			},
		},
		{
			entitySuffix: "firmware",
			config: SensorConfig{
				Name:              device.Name + " Firmware",
				UniqueID:          p.instanceID + "_firmware",
				StateTopic:        p.stateTopic("firmware"),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:tag",
				EntityCategory:    "diagnostic",
			},
		},
	}
}

type switchDef struct {
	entitySuffix string
	config       SwitchConfig
}

func (p *Publisher) switchDefinitions() []switchDef {
	avail := p.availabilityTopic()
	device := p.deviceInfo()
	radioSwitch := func(entity, label string) switchDef {
		return switchDef{
			entitySuffix: entity,
			config: SwitchConfig{
				Name:              device.Name + " " + label,
				UniqueID:          p.instanceID + "_" + entity,
				StateTopic:        p.stateTopic(entity),
				CommandTopic:      p.commandTopic(entity),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              "mdi:wifi",
				PayloadOn:         "ON",
				PayloadOff:        "OFF",
			},
		}
	}
	guest := switchDef{
		entitySuffix: "guest_ssid",
		config: SwitchConfig{
			Name:              device.Name + " Guest SSID",
			UniqueID:          p.instanceID + "_guest_ssid",
			StateTopic:        p.stateTopic("guest_ssid"),
			CommandTopic:      p.commandTopic("guest_ssid"),
			AvailabilityTopic: avail,
			Device:            device,
			Icon:              "mdi:wifi-lock-open",
			PayloadOn:         "ON",
			PayloadOff:        "OFF",
			Optimistic:        true,
		},
	}
	return []switchDef{
		radioSwitch("radio_24g", "Radio 2.4GHz"),
		radioSwitch("radio_5g", "Radio 5GHz"),
		guest,
	}
}

func (p *Publisher) buttonDefinition() (string, ButtonConfig) {
	device := p.deviceInfo()
	return "reboot", ButtonConfig{
		Name:              device.Name + " Reboot",
		UniqueID:          p.instanceID + "_reboot",
		CommandTopic:      p.commandTopic("reboot"),
		AvailabilityTopic: p.availabilityTopic(),
		Device:            device,
		Icon:              "mdi:restart",
		PayloadPress:      "PRESS",
		DeviceClass:       "restart",
	}
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	publish := func(component, entity string, payload any) {
		topic := p.discoveryTopic(component, entity)
		body, err := json.Marshal(payload)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload", "entity", entity, "error", err)
			return
		}
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: body,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			p.logger.Warn("mqtt discovery publish failed", "entity", entity, "topic", topic, "error", err)
		} else {
			p.logger.Debug("mqtt discovery published", "entity", entity, "topic", topic)
		}
	}

	for _, s := range p.sensorDefinitions() {
		publish("sensor", s.entitySuffix, s.config)
	}
	for _, s := range p.switchDefinitions() {
		publish("switch", s.entitySuffix, s.config)
	}
	entity, button := p.buttonDefinition()
	publish("button", entity, button)
}

func (p *Publisher) subscribeCommands(ctx context.Context, cm *autopaho.ConnectionManager) {
	subs := []paho.SubscribeOptions{
		{Topic: p.commandTopic("radio_24g"), QoS: 1},
		{Topic: p.commandTopic("radio_5g"), QoS: 1},
		{Topic: p.commandTopic("guest_ssid"), QoS: 1},
		{Topic: p.commandTopic("reboot"), QoS: 1},
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		p.logger.Warn("mqtt command subscribe failed", "error", err)
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

// --- Command handling ---

func (p *Publisher) handleCommand(topic string, payload []byte) {
	base := p.baseTopic() + "/"
	if !strings.HasPrefix(topic, base) || !strings.HasSuffix(topic, "/set") {
		return
	}
	entity := strings.TrimSuffix(strings.TrimPrefix(topic, base), "/set")
	value := strings.ToUpper(strings.TrimSpace(string(payload)))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var err error
	switch entity {
	case "radio_24g":
		err = p.control.SetRadio(ctx, 1, value == "ON")
	case "radio_5g":
		err = p.control.SetRadio(ctx, 2, value == "ON")
	case "guest_ssid":
		err = p.control.SetGuestSSID(ctx, value == "ON")
	case "reboot":
		err = p.control.Reboot(ctx)
	default:
		return
	}
	if err != nil {
		p.logger.Error("mqtt command failed", "entity", entity, "value", value, "error", err)
		return
	}
	p.logger.Info("mqtt command executed", "entity", entity, "value", value)
	if p.refresh != nil && entity != "reboot" {
		p.refresh()
	}
	p.publishStates(ctx)
}

// --- Periodic state loop ---

func (p *Publisher) runLoop(ctx context.Context) {
	interval := time.Duration(p.cfg.PublishIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publishStates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishStates(ctx)
		}
	}
}

func (p *Publisher) publishStates(ctx context.Context) {
	if p.cm == nil {
		return
	}

	snapshot, counts, ok := p.source.LatestSnapshot()
	if !ok {
		return
	}

	states := map[string]string{
		"uptime":        strconv.FormatInt(snapshot.UptimeSeconds, 10),
		"cpu_usage":     strconv.Itoa(snapshot.CPU.Current),
		"memory_usage":  strconv.Itoa(snapshot.MemoryPercent),
		"clients_total": strconv.Itoa(counts.Total),
		"clients_24g":   strconv.Itoa(counts.Band24),
		"clients_5g":    strconv.Itoa(counts.Band5),
		"firmware":      snapshot.Device.Firmware,
	}
	if radio, ok := snapshot.Radio(1); ok {
		states["radio_24g"] = onOff(radio.Active)
	}
	if radio, ok := snapshot.Radio(2); ok {
		states["radio_5g"] = onOff(radio.Active)
	}
	if on, known, err := p.source.GuestSSIDState(ctx); err != nil {
		p.logger.Debug("guest ssid state read failed", "error", err)
	} else if known {
		states["guest_ssid"] = onOff(on)
	}

	for entity, value := range states {
		if _, err := p.cm.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed", "entity", entity, "error", err)
		}
	}

	p.logger.Debug("mqtt states published", "entities", len(states))
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
