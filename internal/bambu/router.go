package bambu

import (
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// router is the process-wide topic -> adapter map of spec.md §4.7. The
// firmware this hub descends from needed it because its MQTT library
// only admits a single C-style callback per process (see
// BambuMqttClient.h's static onMessage wrappers); paho.mqtt.golang
// supports a per-client default handler, but every *Adapter still
// shares this one table and one handler function, preserving the same
// "subscribe registers, disconnect unregisters, unmatched topic is
// logged and dropped" contract spec.md describes, rather than wiring a
// closure per client.
var router = struct {
	mu      sync.Mutex
	byTopic map[string]*Adapter
}{byTopic: make(map[string]*Adapter)}

func routerRegister(topic string, a *Adapter) {
	router.mu.Lock()
	defer router.mu.Unlock()
	router.byTopic[topic] = a
}

func routerUnregister(topic string) {
	router.mu.Lock()
	defer router.mu.Unlock()
	delete(router.byTopic, topic)
}

func routerDispatch(client mqtt.Client, msg mqtt.Message) {
	router.mu.Lock()
	a, ok := router.byTopic[msg.Topic()]
	router.mu.Unlock()
	if !ok {
		logrus.WithFields(logrus.Fields{"component": "bambu", "topic": msg.Topic()}).Warn("bambu: no adapter registered for topic, dropping")
		return
	}
	a.handleMessage(msg.Payload())
}
