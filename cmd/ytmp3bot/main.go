package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/ytmp3bot/bot"
	"github.com/m3rciful/ytmp3bot/core/buildinfo"
	corecmd "github.com/m3rciful/ytmp3bot/core/cmd"
)

func main() {
	// .env is optional; deployments usually set env vars directly.
	_ = godotenv.Load()

	log.Printf("ytmp3bot %s (%s)", buildinfo.Version, buildinfo.Commit)

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return bot.New(cfg.(*bot.Config))
		},
	})
	if err != nil {
		log.Fatalf("ytmp3bot: %v", err)
	}
}
