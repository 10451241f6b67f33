package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/handler"
	"github.com/habitflow/internal/router"
	"github.com/habitflow/internal/service"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	balance, err := config.LoadBalance(cfg.BalanceFile)
	if err != nil {
		log.Fatalf("failed to load balance file: %v", err)
	}

	// 初始化数据库
	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.EnsureOwner(gdb, cfg.OwnerPasscode); err != nil {
		log.Fatalf("failed to configure owner passcode: %v", err)
	}

	store := service.NewGormBlobStore(gdb)
	tracker, err := service.NewTracker(context.Background(), store, service.OptionsFromBalance(balance, datekey.SystemClock{}))
	if err != nil {
		log.Fatalf("failed to load tracker state: %v", err)
	}

	api := handler.NewAPI(gdb, tracker, store, balance)
	if err := api.System().SeedFromEnv(cfg.AIProvider, cfg.OpenAIAPIKey, cfg.DeepSeekAPIKey); err != nil {
		log.Printf("failed to seed AI settings from environment: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	log.Printf("habitflow listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
