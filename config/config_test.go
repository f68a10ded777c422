package config

import (
	// Go Internal Packages
	"testing"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"

	// External Packages
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, overrides ...string) Config {
	t.Helper()
	k := koanf.New(".")
	require.NoError(t, k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()))
	for _, o := range overrides {
		require.NoError(t, k.Load(rawbytes.Provider([]byte(o)), yaml.Parser()))
	}
	var c Config
	require.NoError(t, k.Unmarshal("", &c))
	return c
}

func TestDefaultConfigIsValid(t *testing.T) {
	c := load(t)
	require.NoError(t, c.Validate())

	assert.Equal(t, "wallet-ledger", c.Application)
	assert.Equal(t, "mongodb", c.Store.Driver)
	assert.Equal(t, 15*time.Minute, c.Payments.SessionTTL)
	assert.Equal(t, int64(5), c.Payments.MaxConfirmAttempts)
	assert.Equal(t, 5*time.Second, c.Notifier.Timeout)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
}

func TestValidateAggregatesErrors(t *testing.T) {
	c := load(t, `
store:
  driver: "cassandra"
notifier:
  enabled: true
  smtp:
    host: ""
kafka:
  consume: true
  topic: ""
redis:
  enabled: false
`)
	err := c.Validate()
	require.Error(t, err)

	var ve *errors.ValidationErrors
	require.True(t, errors.As(err, &ve))
	fields := ve.Fields()
	for _, f := range []string{"store.driver", "notifier.smtp.host", "notifier.smtp.from", "kafka.topic", "redis.enabled"} {
		assert.Contains(t, fields, f)
	}
}

func TestMemoryDriverNeedsNoDatabase(t *testing.T) {
	c := load(t, `
store:
  driver: "memory"
mongo:
  uri: ""
`)
	assert.NoError(t, c.Validate())
}

func TestRedacted(t *testing.T) {
	c := load(t)
	c.Notifier.SMTP.Password = "secret"
	c.Redis.Password = "secret"

	r := c.Redacted()
	assert.NotEqual(t, "secret", r.Notifier.SMTP.Password)
	assert.NotEqual(t, "secret", r.Redis.Password)
	assert.NotEqual(t, c.Mongo.URI, r.Mongo.URI)
	assert.Equal(t, "secret", c.Redis.Password, "the original is untouched")
}
