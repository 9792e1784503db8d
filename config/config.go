package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug                        bool   `envconfig:"debug"`
	Port                         int    `envconfig:"port" default:"8080"`
	Env                          string `envconfig:"env"`
	PostgresHost                 string `envconfig:"postgres_host"`
	PostgresUser                 string `envconfig:"postgres_user"`
	PostgresDB                   string `envconfig:"postgres_db"`
	PostgresPort                 int    `envconfig:"postgres_port"`
	PostgresPassword             string `envconfig:"postgres_password"`
	RedisAddr                    string `envconfig:"redis_addr" default:"localhost:6379"`
	RedisPassword                string `envconfig:"redis_password"`
	RedisDB                      int    `envconfig:"redis_db"`
	JWTSecret                    string `envconfig:"jwt_secret"`
	GoogleApplicationCredentials string `envconfig:"google_application_credentials"`
	AccessControlAllowOrigin     string `envconfig:"access_control_allow_origin"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("dormside", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
