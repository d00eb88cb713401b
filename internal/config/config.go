// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	RabbitMQ        `yaml:"rabbitmq"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	Identity        `yaml:"identity"`
	SMTP            `yaml:"smtp"`
	PayPal          `yaml:"paypal"`
}

// Storage описывает выбор хранилища: облачное (postgres) либо локальное (json-файлы).
// Режим выбирается один раз на старте: если строка подключения не задана,
// сервис работает в локальном режиме.
type Storage struct {
	ConnectionString string `yaml:"connection_string" env:"STORAGE_CONNECTION_STRING"`
	LocalDataDir     string `yaml:"local_data_dir" env-default:"./data"`
	MigrationsPath   string `yaml:"migrations_path" env-default:"./migrations"`
}

// CloudConfigured сообщает, настроен ли облачный бэкенд.
func (s Storage) CloudConfigured() bool {
	return s.ConnectionString != ""
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"localhost:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений
type RabbitMQ struct {
	AddressRabbitMQ string        `yaml:"addressrabbitmq"`
	ConnectRetries  int           `yaml:"connect_retries" env-default:"5"`
	ConnectDelay    time.Duration `yaml:"connect_delay" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном сессии
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Identity содержит параметры сервиса идентификации: таймауты операций,
// задержку чтения профиля после входа и зарезервированную bootstrap-учётку.
type Identity struct {
	LoginTimeout   time.Duration `yaml:"login_timeout" env-default:"8s"`
	RestoreTimeout time.Duration `yaml:"restore_timeout" env-default:"3s"`
	SettleDelay    time.Duration `yaml:"settle_delay" env-default:"500ms"`
	BootstrapEmail string        `yaml:"bootstrap_email" env-default:"admin@mazylab.com"`
	BootstrapPass  string        `yaml:"bootstrap_pass" env:"BOOTSTRAP_PASS"`
}

// SMTP структура с настройками транспорта исходящей почты
type SMTP struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port" env-default:"587"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPass     string `yaml:"smtp_pass" env:"SMTP_PASS"`
	RelayURL     string `yaml:"relay_url"`
	FunctionURL  string `yaml:"function_url"`
	DesktopShell bool   `yaml:"desktop_shell" env:"DESKTOP_SHELL"`
}

// PayPal структура с учетными данными платежного провайдера
type PayPal struct {
	PayPalClientID string `yaml:"paypal_client_id"`
	PayPalSecret   string `yaml:"paypal_secret" env:"PAYPAL_SECRET"`
	PayPalAPIURL   string `yaml:"paypal_api_url" env-default:"https://api-m.sandbox.paypal.com"`
}

// MustLoad функция для загрузки конфига, путь берется из переменной окружения CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
