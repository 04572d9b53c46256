package main

import (
	_c "context"
	"mixer/lib/runtime"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(&cobra.Command{
		Use:   "run <config>",
		Short: "run a mixing pipeline",
		Long:  `config source operator sink, then run until a signal arrives or every source is done`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFilePath := args[0]
			ext := path.Ext(configFilePath)
			if ext == "" {
				return errors.Errorf("config file %s needs an extension", configFilePath)
			}
			name := strings.TrimSuffix(path.Base(configFilePath), ext)
			rt := runtime.New(_c.Background(), name, ext[1:], path.Dir(configFilePath))
			return rt.Run()
		},
	})
}
