package kafka

import (
	"mixer/lib/component/componenttest"
	"mixer/mixer"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const config = `
sink:
  kafka:
    topic: batches
    brokers: [localhost:9092]
`

func openWithMock(t *testing.T) (*sink, *mocks.SyncProducer, *[]string) {
	t.Helper()
	var producer *mocks.SyncProducer
	var brokers []string
	newSyncProducer = func(addrs []string, config *sarama.Config) (sarama.SyncProducer, error) {
		brokers = addrs
		producer = mocks.NewSyncProducer(t, config)
		return producer, nil
	}
	t.Cleanup(func() { newSyncProducer = sarama.NewSyncProducer })

	s := New().(*sink)
	ctx := componenttest.NewContext(t, config, "sink.kafka", s.PropertiesDef())
	require.NoError(t, s.Open(ctx))
	return s, producer, &brokers
}

func TestSink_Emit(t *testing.T) {
	s, producer, brokers := openWithMock(t)
	assert.Equal(t, []string{"localhost:9092"}, *brokers)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		event := &mixer.Event{}
		if err := json.Unmarshal(value, event); err != nil {
			return err
		}
		assert.Equal(t, "k1", event.Meta["key"])
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event, counter := componenttest.ACKCounter([]any{"a", "b"})
	event.Meta = map[string]any{"key": "k1"}
	emit := s.GenerateEmit(nil)
	emit(event)
	assert.Equal(t, 1, counter.Value())

	failed, failedCounter := componenttest.ACKCounter("c")
	emit(failed)
	//nack still releases upstream
	assert.Equal(t, 1, failedCounter.Value())

	require.NoError(t, s.Close())
}
