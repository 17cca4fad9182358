package main

import (
	stdLog "log"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/librakeeper/lending/app"
	"github.com/Astemirdum/librakeeper/lending/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdLog.Println("no .env file, using process environment:", err)
	}
	cfg := config.NewConfig(config.WithLogLevel(zapcore.InfoLevel))

	if err := app.RunNotifier(cfg); err != nil {
		stdLog.Fatal("app.RunNotifier ", err)
	}
}
