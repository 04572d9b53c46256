package kafka

import (
	"mixer/lib/component"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/mixer"
	"mixer/pkg/codec"
	"mixer/pkg/kafka"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

var (
	TopicsProperty                = properties.NewRequiredProperty[[]string]("topics", "")
	GroupIdProperty               = properties.NewProperty[string]("group.id", "", "mixer")
	OffsetsCommitIntervalProperty = properties.NewProperty[int]("offsets.commit.interval", "kafka commit interval sec", 5)
	OffsetsInitial                = properties.NewProperty[string]("offsets.initial", "newest or oldest", "oldest")
	CodecProperty                 = properties.NewProperty[string]("codec", "record value codec, json or raw", codec.JSON)
)

type source struct {
	ctx           mixer.Context
	logger        mixer.Logger
	emitNext      mixer.EmitNext
	decode        codec.Decoder
	consumerGroup sarama.ConsumerGroup
}

func (s *source) Open(ctx mixer.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)

	var err error
	if s.decode, err = codec.NewDecoder(s.ctx.Properties().GetString(CodecProperty)); err != nil {
		return err
	}
	config, err := kafka.NewConfig(s.ctx.Properties())
	if err != nil {
		return err
	}
	config.Consumer.Return.Errors = true
	//OffsetNewest or OffsetOldest.
	config.Consumer.Offsets.AutoCommit.Interval = time.Duration(s.ctx.Properties().GetInt(OffsetsCommitIntervalProperty)) * time.Second
	if s.ctx.Properties().GetString(OffsetsInitial) == "newest" {
		config.Consumer.Offsets.Initial = sarama.OffsetNewest
	} else {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	s.consumerGroup, err = sarama.NewConsumerGroup(s.ctx.Properties().GetStringSlice(kafka.BrokersProperty), s.ctx.Properties().GetString(GroupIdProperty), config)
	if err != nil {
		return err
	}
	go s.handleErrors()
	return nil
}

func (s *source) Close() error {
	var err error
	for i := 1; i < 4; i++ {
		err = s.consumerGroup.Close()
		if err == nil {
			return nil
		}
		s.logger.Warnw("close kafka consumer error, waiting 1 second.", "time", i, "err", err)
		time.Sleep(1 * time.Second)
	}
	return errors.WithMessage(err, "can't close kafka consumer")
}

func (s *source) PropertiesDef() mixer.PropertiesDef {
	return append(mixer.PropertiesDef{TopicsProperty, GroupIdProperty, OffsetsCommitIntervalProperty, OffsetsInitial, CodecProperty},
		kafka.ClientPropertiesDef...)
}

func (s *source) Collect(emitNext mixer.EmitNext) error {
	s.emitNext = emitNext
	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
			if err := s.consumerGroup.Consume(s.ctx.Ctx(), s.ctx.Properties().GetStringSlice(TopicsProperty), s); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				return errors.WithMessage(err, "can't collect kafka")
			}
		}
	}
}

func (s *source) Setup(_ sarama.ConsumerGroupSession) error {
	s.logger.Infof("set up...")
	return nil
}

func (s *source) Cleanup(_ sarama.ConsumerGroupSession) error {
	s.logger.Infof("clean up...")
	return nil
}

func (s *source) handleErrors() {
	for err := range s.consumerGroup.Errors() {
		s.logger.Errorw("received error.", "err", err)
	}
}

func (s *source) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		message := message
		value, err := s.decode(message.Value)
		if err != nil {
			s.logger.Warnw("can't decode record, skip it.", "topic", message.Topic, "offset", message.Offset, "err", err)
			session.MarkMessage(message, "")
			continue
		}
		headers := map[string]string{}
		for _, recordHeader := range message.Headers {
			headers[string(recordHeader.Key)] = string(recordHeader.Value)
		}
		s.emitNext(
			&mixer.Event{
				Meta: map[string]any{
					"topic":     message.Topic,
					"partition": message.Partition,
					"offset":    message.Offset,
					"timestamp": message.Timestamp,
					"key":       string(message.Key),
					"headers":   headers,
				},
				Message: value,
				Time:    time.Now()}, func() {
				session.MarkMessage(message, "")
			})
	}
	return nil
}

func New() mixer.Source {
	return &source{}
}

func init() {
	component.RegisterNewSourceFunc("kafka", New)
}
