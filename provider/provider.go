// Package provider builds the KV client, payload store and callback adapter
// once from configuration and hands them out as an explicit Registry.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/asaskevich/govalidator"
	"github.com/google/wire"
	"github.com/pandodao/anchor-store/core"
	"github.com/pandodao/anchor-store/service/kvstore"
	"github.com/pandodao/anchor-store/store/callback"
	"github.com/pandodao/anchor-store/store/payload"
	"github.com/spf13/viper"
)

// APIKeyEnv overrides the api key found in the config file.
const APIKeyEnv = "ANCHORSTORE_API_KEY"

type Config struct {
	KV      kvstore.Config
	Payload payload.Config
}

// LoadConfig reads the kvstore and payload sections of v. A missing api key
// is reported as core.ErrConfiguration.
func LoadConfig(v *viper.Viper) (Config, error) {
	v.SetDefault("kvstore.endpoint", kvstore.DefaultEndpoint)
	v.SetDefault("kvstore.collection", kvstore.DefaultCollection)
	v.SetDefault("kvstore.auth_header", kvstore.DefaultAuthHeader)
	v.SetDefault("payload.strategy", payload.StrategySequential.String())

	if err := v.BindEnv("kvstore.api_key", APIKeyEnv); err != nil {
		return Config{}, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	apiKey := v.GetString("kvstore.api_key")
	if apiKey == "" {
		return Config{}, fmt.Errorf("%w: kvstore.api_key is empty, set it in the config file or %s", core.ErrConfiguration, APIKeyEnv)
	}

	strategy, err := payload.ParseStrategy(v.GetString("payload.strategy"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	cfg := Config{
		KV: kvstore.Config{
			APIKey:     apiKey,
			Endpoint:   v.GetString("kvstore.endpoint"),
			Collection: v.GetString("kvstore.collection"),
			AuthHeader: v.GetString("kvstore.auth_header"),
			Timeout:    v.GetDuration("kvstore.timeout"),
		},
		Payload: payload.Config{
			Strategy:    strategy,
			Concurrency: v.GetInt("payload.concurrency"),
		},
	}

	if _, err := govalidator.ValidateStruct(cfg.Payload); err != nil {
		return Config{}, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	return cfg, nil
}

type Registry struct {
	KV        *kvstore.Client
	Payloads  core.PayloadStore
	Callbacks core.CallbackPayloadStore
}

func New(cfg Config, logger *slog.Logger) (*Registry, error) {
	kv, err := ProvideKVStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	payloads := ProvidePayloadStore(kv, logger, cfg)
	return &Registry{
		KV:        kv,
		Payloads:  payloads,
		Callbacks: ProvideCallbackStore(payloads, logger),
	}, nil
}

var ProviderSet = wire.NewSet(
	LoadConfig,
	ProvideKVStore,
	ProvidePayloadStore,
	ProvideCallbackStore,
	wire.Bind(new(core.KVStore), new(*kvstore.Client)),
	wire.Struct(new(Registry), "*"),
)

func ProvideKVStore(cfg Config, logger *slog.Logger) (*kvstore.Client, error) {
	return kvstore.New(cfg.KV, logger)
}

func ProvidePayloadStore(kv core.KVStore, logger *slog.Logger, cfg Config) core.PayloadStore {
	return payload.New(kv, logger, cfg.Payload)
}

func ProvideCallbackStore(payloads core.PayloadStore, logger *slog.Logger) core.CallbackPayloadStore {
	return callback.New(payloads, callback.WithLogger(logger))
}
