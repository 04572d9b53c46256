package mixing

import (
	"mixer/lib/mixing"
	"mixer/lib/mixing/store/redis"
	"mixer/lib/properties"
)

var (
	MixingDelayProperty            = properties.NewProperty[int]("mixingDelayMilliseconds", "window length in milliseconds.", int(mixing.DefaultMixingDelay.Milliseconds()))
	SignatureSpecificDelayProperty = properties.NewProperty[bool]("signatureSpecificDelay", "close every window exactly at its deadline instead of as soon as possible.", false)
	AllowDuplicatesProperty        = properties.NewProperty[bool]("allowDuplicates", "let one origin contribute several packets to a window instead of pushing it out.", false)
	KeyProperty                    = properties.NewProperty[string]("key", "dotted path of the grouping key, rooted at message or meta.", "message.identifier.value")
	OriginProperty                 = properties.NewProperty[string]("origin", "dotted path of the packet origin, rooted at message or meta.", "message.origin")
	KeyScriptProperty              = properties.NewProperty[string]("key-script", "tengo script assigning `key` and `origin`, replaces the paths when set.", "")
	StoreTypeProperty              = properties.NewProperty[string]("store.type", "packet buffer, memory pebble or redis.", "memory")
	PebblePathProperty             = properties.NewProperty[string]("store.pebble.path", "pebble directory, empty keeps it in memory.", "")
	RedisAddrsProperty             = properties.NewProperty[[]string]("store.redis.addrs", "redis addresses.", []string{"localhost:6379"})
	RedisPrefixProperty            = properties.NewProperty[string]("store.redis.prefix", "prefix of the redis keys.", redis.DefaultPrefix)
	ReportProperty                 = properties.NewProperty[string]("report", "cron expression of the pending windows report.", "@every 1m")
)
