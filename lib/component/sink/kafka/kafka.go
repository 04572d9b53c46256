package kafka

import (
	"mixer/lib/component"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/mixer"
	"mixer/pkg/kafka"

	"github.com/Shopify/sarama"
	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

var (
	TopicProperty   = properties.NewRequiredProperty[string]("topic", "destination topic")
	KeyMetaProperty = properties.NewProperty[string]("key-meta", "meta field used as record key, empty sends no key", "key")
)

//sink writes every event as one JSON record
type sink struct {
	ctx      mixer.Context
	logger   mixer.Logger
	acker    mixer.ACKer
	topic    string
	keyMeta  string
	producer sarama.SyncProducer
}

var newSyncProducer = sarama.NewSyncProducer

func (s *sink) Open(ctx mixer.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)
	s.acker = mixer.NewACKer()
	s.topic = ctx.Properties().GetString(TopicProperty)
	s.keyMeta = ctx.Properties().GetString(KeyMetaProperty)

	config, err := kafka.NewConfig(ctx.Properties())
	if err != nil {
		return err
	}
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	s.producer, err = newSyncProducer(ctx.Properties().GetStringSlice(kafka.BrokersProperty), config)
	return err
}

func (s *sink) GenerateEmit(_ mixer.Context) mixer.Emit {
	return s.emit
}

func (s *sink) emit(event *mixer.Event) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorw("can't encode event, discarding event.", "err", err)
		s.acker.OnACK(event, false)
		return
	}
	message := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(value),
	}
	if s.keyMeta != "" {
		if key := cast.ToString(event.Meta[s.keyMeta]); key != "" {
			message.Key = sarama.StringEncoder(key)
		}
	}
	if _, _, err = s.producer.SendMessage(message); err != nil {
		s.logger.Errorw("kafka emit failed.", "topic", s.topic, "err", err)
		s.acker.OnACK(event, false)
		return
	}
	s.acker.OnACK(event, true)
}

func (s *sink) Close() error {
	s.acker.Close()
	return s.producer.Close()
}

func (s *sink) PropertiesDef() mixer.PropertiesDef {
	return append(mixer.PropertiesDef{TopicProperty, KeyMetaProperty}, kafka.ClientPropertiesDef...)
}

func New() mixer.Sink {
	return &sink{}
}

func init() {
	component.RegisterNewSinkFunc("kafka", New)
}
