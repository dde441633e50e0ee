package feed

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
)

const connectTimeout = 10 * time.Second

// Subscriber MQTT订阅
// 功能：订阅一个主题，每条消息的负载为一份计数
type Subscriber struct {
	cfg    config.MQTT
	client mqtt.Client
	sink   Sink
}

// NewSubscriber 创建订阅器，ClientID为空时随机生成
func NewSubscriber(cfg config.MQTT, sink Sink) *Subscriber {
	if cfg.ClientID == "" {
		cfg.ClientID = "crossroad-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	s := &Subscriber{cfg: cfg, sink: sink}
	// 重连后重新订阅
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.HandleMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", s.cfg.Topic, token.Error())
		}
	})
	s.client = mqtt.NewClient(opts)
	return s
}

// Start 连接broker并订阅
func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect %s: timeout", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", s.cfg.Broker, err)
	}
	log.Infof("connected to %s, topic %s", s.cfg.Broker, s.cfg.Topic)
	return nil
}

// HandleMessage 处理一条消息，解析失败时丢弃
func (s *Subscriber) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	counts, err := Decode(msg.Payload())
	if err != nil {
		log.Warnf("live feed %s: %v", msg.Topic(), err)
		return
	}
	s.sink.SetLiveCounts(counts)
}

// Close 断开连接
func (s *Subscriber) Close() {
	s.client.Disconnect(250)
}
