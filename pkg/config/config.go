package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr string
	}
	Model struct {
		Dir         string
		DefaultName string `mapstructure:"default_name"`
	}
	InfluxDB struct {
		URL    string
		Token  string
		Org    string
		Bucket string
	}
	MySQL struct {
		DSN     string
		MaxIdle int `mapstructure:"max_idle"`
		MaxOpen int `mapstructure:"max_open"`
	}
	Kafka struct {
		Enabled bool
		Brokers []string
		Topic   string
		GroupID string `mapstructure:"group_id"`
	}
	GeoIP struct {
		CityPath string `mapstructure:"city_path"`
		ASNPath  string `mapstructure:"asn_path"`
	}
	Alert struct {
		WebhookURL      string  `mapstructure:"webhook_url"`
		RiskThreshold   float64 `mapstructure:"risk_threshold"`
		CooldownMinutes int     `mapstructure:"cooldown_minutes"`
	}
	Poller struct {
		Enabled         bool
		IntervalSeconds int `mapstructure:"interval_seconds"`
	}
	Log struct {
		Level string
		Path  string
	}
	Security struct {
		WhitelistIPs []string `mapstructure:"whitelist_ips"`
	}
}

var GlobalConfig Config

func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("config")

	// 关键项的默认值，配置文件缺省时也能启动
	viper.SetDefault("server.addr", ":8085")
	viper.SetDefault("model.dir", "models")
	viper.SetDefault("model.default_name", "random_forest")
	viper.SetDefault("alert.risk_threshold", 0.7)
	viper.SetDefault("alert.cooldown_minutes", 60)
	viper.SetDefault("poller.interval_seconds", 3)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return err
	}

	return viper.Unmarshal(&GlobalConfig)
}
