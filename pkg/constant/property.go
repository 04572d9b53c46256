package constant

import (
	"mixer/lib/properties"

	"github.com/pkg/errors"
)

var (
	//runtime property

	RuntimeModeProperty        = properties.NewProperty[string]("mode", "mixer work mode, ack or snapshot.", "ack")
	RuntimeLogLevelProperty    = properties.NewProperty[string]("log-level", "log level, debug info warn or error.", "info")
	RuntimeStatusDirProperty   = properties.NewProperty[string]("status-dir", "status-dir", ".")
	RuntimeMetricsAddrProperty = properties.NewProperty[string]("metrics-addr", "prometheus listen address, empty disables it.", "")

	//component property

	TypeProperty = properties.NewRequiredProperty[string]("type", "component type")

	SelectorProperty = properties.NewRequiredProperty[string]("select", "emit select")

	ErrUnsupportedMode = errors.New("unsupported runtime mode")
)
