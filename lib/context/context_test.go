package context

import (
	_c "context"
	"mixer/lib/properties"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamed(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("operator:\n  mix:\n    type: mixing\n")))
	root := New(_c.Background(), properties.FromViper(v))

	mix := root.Named("operator.mix")
	assert.Equal(t, "operator.mix", mix.Name())
	require.NotNil(t, mix.Properties())
	assert.Equal(t, "mixing", mix.Properties().GetString(properties.NewRequiredProperty[string]("type", "")))
	assert.Nil(t, root.Named("sink.none").Properties())

	mix.Store("pending", 3)
	value, ok := mix.Load("pending")
	assert.True(t, ok)
	assert.Equal(t, 3, value)

	root.Cancel()
	select {
	case <-mix.Done():
	default:
		t.Fatal("child context should be done after parent cancel")
	}
}
