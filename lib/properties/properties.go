package properties

import (
	"bytes"
	"fmt"
	"mixer/mixer"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const GlobalPrefix = "global"

var (
	ErrPropertyNoSet = fmt.Errorf("property is required,but not set")
)

type properties struct {
	*viper.Viper
	runtime *viper.Viper
}

func (p *properties) Sub(key string) mixer.Properties {
	sub := p.Viper.Sub(key)
	if sub == nil {
		return nil
	}
	return &properties{Viper: sub, runtime: p.runtime}
}

func (p *properties) PrefixKeys(prefix string) []string {
	all := p.Viper.GetStringMap(prefix)
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	return keys
}

func (p *properties) Global() mixer.Properties {
	return &properties{Viper: p.runtime, runtime: p.runtime}
}

func (p *properties) GetStringSlice(property mixer.Property) []string {
	return p.Viper.GetStringSlice(property.Name())
}

func (p *properties) GetString(property mixer.Property) string {
	return p.Viper.GetString(property.Name())
}

func (p *properties) GetBool(property mixer.Property) bool {
	return p.Viper.GetBool(property.Name())
}

func (p *properties) GetInt(property mixer.Property) int {
	return p.Viper.GetInt(property.Name())
}

func (p *properties) GetUint64(property mixer.Property) uint64 {
	return p.Viper.GetUint64(property.Name())
}

func (p *properties) GetDuration(property mixer.Property) time.Duration {
	return p.Viper.GetDuration(property.Name())
}

//InitAndRender checks required properties, fills defaults and renders the effective values
func InitAndRender(p mixer.Properties, def mixer.PropertiesDef) (string, error) {
	switch _p := p.(type) {
	case *properties:
		buffer := &bytes.Buffer{}
		tWriter := tablewriter.NewWriter(buffer)
		tWriter.SetHeader([]string{"name", "type", "value"})
		tWriter.SetAutoFormatHeaders(false)
		tWriter.SetAutoWrapText(false)

		for _, _property := range def {
			if _property.Required() {
				if !_p.Viper.IsSet(_property.Name()) {
					return "", errors.WithMessage(ErrPropertyNoSet, _property.Name())
				}
			} else {
				_p.Viper.SetDefault(_property.Name(), _property.Default())
			}
			tWriter.Append([]string{
				_property.Name(),
				_property.Type(),
				fmt.Sprintf("%+v", _p.Viper.Get(_property.Name())),
			})
		}
		tWriter.Render()
		return buffer.String(), nil
	default:
		return "", nil
	}
}

func RenderDef(p mixer.PropertiesDef) string {
	buffer := &bytes.Buffer{}
	tWriter := tablewriter.NewWriter(buffer)
	tWriter.SetHeader([]string{"name", "description", "required", "type", "default"})
	tWriter.SetAutoFormatHeaders(false)
	tWriter.SetAutoWrapText(false)
	for _, p := range p {
		tWriter.Append([]string{
			p.Name(),
			p.Description(),
			strconv.FormatBool(p.Required()),
			p.Type(),
			fmt.Sprintf("%+v", p.Default()),
		})
	}
	tWriter.Render()
	return buffer.String()
}

//FromViper wraps an already loaded viper, the global section becomes Global()
func FromViper(v *viper.Viper) mixer.Properties {
	runtime := v.Sub(GlobalPrefix)
	if runtime == nil {
		runtime = viper.New()
	}
	return &properties{Viper: v, runtime: runtime}
}

func New(propertiesName string, propertiesType string, propertiesPath ...string) mixer.Properties {
	v := viper.New()
	v.SetConfigName(propertiesName)
	v.SetConfigType(propertiesType)
	for _, p := range propertiesPath {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read config error:%s", err.Error()))
	}
	return FromViper(v)
}
