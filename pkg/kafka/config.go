package kafka

import (
	"mixer/lib/properties"
	"mixer/mixer"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

var (
	VersionProperty  = properties.NewProperty[string]("version", "kafka protocol version", "2.4.0")
	BrokersProperty  = properties.NewRequiredProperty[[]string]("brokers", "kafka bootstrap brokers")
	ClientIdProperty = properties.NewProperty[string]("client.id", "client id", "")

	SASLUserProperty     = properties.NewProperty[string]("sasl-username", "", "")
	SASLPasswordProperty = properties.NewProperty[string]("sasl-password", "", "")
)

//ClientPropertiesDef is shared by every component talking to kafka
var ClientPropertiesDef = mixer.PropertiesDef{VersionProperty, BrokersProperty, ClientIdProperty, SASLUserProperty, SASLPasswordProperty}

//NewConfig builds the client part of a sarama config from component properties
func NewConfig(p mixer.Properties) (*sarama.Config, error) {
	config := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion(p.GetString(VersionProperty))
	if err != nil {
		return nil, errors.WithMessage(err, "invalid kafka version")
	}
	config.Version = version
	//sasl
	saslUser := p.GetString(SASLUserProperty)
	saslPassword := p.GetString(SASLPasswordProperty)
	if saslUser != "" && saslPassword != "" {
		config.Net.SASL.User = saslUser
		config.Net.SASL.Password = saslPassword
		config.Net.SASL.Enable = true
	}
	//clientId
	if clientId := p.GetString(ClientIdProperty); clientId != "" {
		config.ClientID = clientId
	}
	return config, nil
}
