package component

import (
	"mixer/mixer"
	"sort"
)

var (
	sinkMap     = map[string]mixer.NewSinkFunc{}
	sourceMap   = map[string]mixer.NewSourceFunc{}
	operatorMap = map[string]mixer.NewOperatorFunc{}
)

func RegisterNewSinkFunc(_type string, sinkFunc mixer.NewSinkFunc) {
	sinkMap[_type] = sinkFunc
}

func RegisterNewSourceFunc(_type string, sourceFunc mixer.NewSourceFunc) {
	sourceMap[_type] = sourceFunc
}

func RegisterNewOperatorFunc(_type string, operatorFunc mixer.NewOperatorFunc) {
	operatorMap[_type] = operatorFunc
}

func NewSourceFunc(_type string) mixer.NewSourceFunc {
	return sourceMap[_type]
}

func NewOperatorFunc(_type string) mixer.NewOperatorFunc {
	return operatorMap[_type]
}

func NewSinkFunc(_type string) mixer.NewSinkFunc {
	return sinkMap[_type]
}

func ListSourceDef() map[string]mixer.PropertiesDef {
	sourceDefMap := map[string]mixer.PropertiesDef{}
	for name, sourceFunc := range sourceMap {
		sourceDefMap[name] = sourceFunc().PropertiesDef()
	}
	return sourceDefMap
}

func ListOperatorDef() map[string]mixer.PropertiesDef {
	operatorDefMap := map[string]mixer.PropertiesDef{}
	for name, operatorFunc := range operatorMap {
		operatorDefMap[name] = operatorFunc().PropertiesDef()
	}
	return operatorDefMap
}

func ListSinkDef() map[string]mixer.PropertiesDef {
	sinkDefMap := map[string]mixer.PropertiesDef{}
	for name, sinkFunc := range sinkMap {
		sinkDefMap[name] = sinkFunc().PropertiesDef()
	}
	return sinkDefMap
}

//SortedNames returns the keys of a def map in a stable order for rendering
func SortedNames(defs map[string]mixer.PropertiesDef) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
