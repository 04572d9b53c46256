package codec

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	JSON = "json"
	Raw  = "raw"
)

var ErrUnknownCodec = errors.New("unknown codec")

//Decoder turns one record read by a source into an event message
type Decoder func(data []byte) (any, error)

func NewDecoder(codec string) (Decoder, error) {
	switch codec {
	case JSON:
		return decodeJSON, nil
	case Raw:
		return decodeRaw, nil
	default:
		return nil, errors.WithMessage(ErrUnknownCodec, codec)
	}
}

func decodeJSON(data []byte) (any, error) {
	var message any
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, errors.WithMessage(err, "invalid json record")
	}
	return message, nil
}

func decodeRaw(data []byte) (any, error) {
	return string(data), nil
}
