package mixer

import "time"

//Properties is a subset of *viper.Viper scoped to one config section.
//Global returns the `global` section shared by the runtime (mode, log-level,
//status-dir, metrics-addr).
type Properties interface {
	Global() Properties
	Sub(key string) Properties
	IsSet(key string) bool
	PrefixKeys(prefix string) []string

	GetStringSlice(property Property) []string
	GetString(property Property) string
	GetBool(property Property) bool
	GetInt(property Property) int
	GetUint64(property Property) uint64
	GetDuration(property Property) time.Duration
}

//Property is a typed config key with a default, declared by the component
//that reads it and rendered at startup.
type Property interface {
	Name() string
	Description() string
	Type() string
	Required() bool
	Default() interface{}
}

//PropertiesDef lists every property a component reads, defaults are applied
//from it before Open.
type PropertiesDef []Property
