package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "GATEWAY_"

type ConfigHandler struct {
	mainViper   *viper.Viper
	secretViper *viper.Viper
	lock        *sync.Mutex
}

func (c *ConfigHandler) HandleChanges(callback func(Config, error)) {
	c.mainViper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("main config file changed", "path", e.Name)
		callback(c.Config())
	})
	c.secretViper.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("secret config file changed", "path", e.Name)
		callback(c.Config())
	})
}

// NewConfigHandler creates a configuration handler that reads the configuration files, merges them
// and can watch them for changes. Please note that the merges replace whole arrays - they do not
// merge arrays. The secret file will always overwrite anything in the non-secret / regular file.
// And any environment variables will always rewrite stuff in the secret config, so the order of
// preference from most preferred to least is environment variables, secret config, non-secret config.
func NewConfigHandler() *ConfigHandler {
	main := viper.New()
	main.SetConfigType("yaml")
	main.SetConfigName("config")
	secret := viper.New()
	secret.SetConfigType("yaml")
	secret.SetConfigName("secret_config")
	// Viper will look through the list of paths and use the first one where there is a file
	// so the path specified in the env variable will always take precedence over the rest
	configPaths := []string{}
	configPathEnv := os.Getenv("CONFIG_LOCATION")
	if configPathEnv != "" {
		configPaths = append(configPaths, configPathEnv)
	}
	configPaths = append(configPaths, "/etc/gateway", ".")
	for _, path := range configPaths {
		main.AddConfigPath(path)
		secret.AddConfigPath(path)
	}
	setDefaults(main)
	return &ConfigHandler{secretViper: secret, mainViper: main, lock: &sync.Mutex{}}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", string(Development))
	v.SetDefault("debugMode", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("backend.baseURL", "http://localhost:8080")
	v.SetDefault("auth.expiryBufferSeconds", 120)
	v.SetDefault("auth.cacheFreshnessSeconds", 300)
	v.SetDefault("auth.refreshCookieName", "dashboard_refresh_token")
	v.SetDefault("auth.defaultRole", "admin")
	v.SetDefault("identity.issuer", "http://localhost:8088/realms/dashboard")
	v.SetDefault("identity.clientID", "admin-gateway")
	v.SetDefault("identity.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("identity.callbackURI", "http://localhost:8000/auth/callback")
	v.SetDefault("sessions.cookieName", "_dashboard_session")
	v.SetDefault("sessions.idleSessionTTLSeconds", 14400)
	v.SetDefault("sessions.maxSessionTTLSeconds", 86400)
	v.SetDefault("redis.type", DBTypeRedisMock)
	v.SetDefault("signin.fallbackPath", "/")
}

func (c *ConfigHandler) merge() error {
	err := c.secretViper.ReadInConfig()
	if err != nil {
		return err
	}
	var cm map[string]any
	err = c.secretViper.Unmarshal(
		&cm,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				parseStringAsURL(),
			),
		),
	)
	if err != nil {
		return err
	}
	return c.mainViper.MergeConfigMap(cm)
}

func (c *ConfigHandler) getConfig() (Config, error) {
	var output Config
	err := c.mainViper.ReadInConfig()
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			slog.Info("could not find a main config file - defaults, the secret file and environment variables will be used")
		default:
			return Config{}, err
		}
	}
	secretMissing := false
	err = c.secretViper.ReadInConfig()
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			secretMissing = true
			slog.Info("could not find any secret config files - only the public file and environment variables will be used")
		default:
			return Config{}, err
		}
	}
	// the env variables will overwrite stuff in the secret config if set
	envTarget := c.secretViper
	if secretMissing {
		envTarget = c.mainViper
	}
	// bind over the union of both files, a key that only appears in the
	// secret file must still be overridable from the environment
	keys := c.mainViper.AllKeys()
	if !secretMissing {
		keys = append(keys, c.secretViper.AllKeys()...)
	}
	for _, key := range keys {
		envKey := envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		err := envTarget.BindEnv(key, envKey)
		if err != nil {
			return Config{}, fmt.Errorf("unable to bind env variable %s: %w", envKey, err)
		}
	}
	if !secretMissing {
		// here the secret config (with any env variables merged) will overwrite anything
		// from the non-secret configuration
		err = c.merge()
		if err != nil {
			return Config{}, err
		}
	}
	err = c.mainViper.Unmarshal(
		&output,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				parseStringAsURL(),
			),
		),
	)
	if err != nil {
		return Config{}, err
	}
	err = output.Validate()
	if err != nil {
		return Config{}, err
	}
	return output, nil
}

func (c *ConfigHandler) Config() (Config, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.getConfig()
}

func (c *ConfigHandler) Watch() {
	c.mainViper.WatchConfig()
	c.secretViper.WatchConfig()
}

func parseStringAsURL() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (interface{}, error) {
		// Check that the data is string
		if f.Kind() != reflect.String {
			return data, nil
		}

		// Check that the target type is our custom type
		if t != reflect.TypeOf(url.URL{}) {
			return data, nil
		}

		// Return the parsed value
		dataStr, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("cannot cast URL value to string")
		}
		if dataStr == "" {
			return nil, fmt.Errorf("empty values are not allowed for URLs")
		}
		url, err := url.Parse(dataStr)
		if err != nil {
			return nil, err
		}
		return url, nil
	}
}
