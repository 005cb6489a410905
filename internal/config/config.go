package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI               string
	MongoDB                string
	RedisURL               string
	JWTSecret              string
	Port                   string
	NotificationServiceURL string
	AllowedOrigins         string
	MinioEndpoint          string
	MinioAccessKey         string
	MinioSecretKey         string
	MinioBucket            string
	MinioPublicBaseURL     string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	return &Config{
		MongoURI:               os.Getenv("MONGO_URI"),
		MongoDB:                os.Getenv("MONGO_DB"),
		RedisURL:               os.Getenv("REDIS_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		Port:                   os.Getenv("PORT"),
		NotificationServiceURL: os.Getenv("NOTIFICATION_SERVICE_URL"),
		AllowedOrigins:         os.Getenv("ALLOWED_ORIGINS"),
		MinioEndpoint:          os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:         os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:         os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:            os.Getenv("MINIO_BUCKET"),
		MinioPublicBaseURL:     os.Getenv("MINIO_PUBLIC_BASE_URL"),
	}, nil
}
