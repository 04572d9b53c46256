package emit

import (
	"mixer/mixer"
)

var (
	emitNextGeneratorMap = map[string]mixer.NewEmitNextGeneratorFunc{}
)

func RegisterEmitNextGeneratorFunc(name string, emitNextGeneratorFunc mixer.NewEmitNextGeneratorFunc) {
	emitNextGeneratorMap[name] = emitNextGeneratorFunc
}

func NewEmitNextGeneratorFunc(name string) mixer.NewEmitNextGeneratorFunc {
	return emitNextGeneratorMap[name]
}
