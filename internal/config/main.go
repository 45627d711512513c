package config

type RunningEnvironment string

const Development RunningEnvironment = "development"
const Production RunningEnvironment = "production"

type Config struct {
	Environment RunningEnvironment
	DebugMode   bool
	Server      ServerConfig
	Backend     BackendConfig
	Auth        AuthConfig
	Identity    IdentityConfig
	Sessions    SessionConfig
	Redis       RedisConfig
	Signin      SigninConfig
	Monitoring  MonitoringConfig
}

func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Identity.Validate(c.Environment); err != nil {
		return err
	}
	if err := c.Sessions.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(c.Environment); err != nil {
		return err
	}
	if err := c.Signin.Validate(); err != nil {
		return err
	}
	return nil
}
