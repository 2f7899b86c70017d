package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/bus"
	"github.com/workmesh/workmesh/src/api/chat"
	"github.com/workmesh/workmesh/src/api/config"
	"github.com/workmesh/workmesh/src/api/data"
	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/notify"
	"github.com/workmesh/workmesh/src/api/types"
	"github.com/workmesh/workmesh/src/api/webserver"
)

var allModels = []interface{}{
	&types.Account{}, &types.Category{},
	&types.Job{}, &types.Proposal{}, &types.Milestone{},
	&types.Payment{}, &types.Withdrawal{},
	&types.Notification{}, &types.ChatMessage{},
}

func migrate(db *gorm.DB) {
	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

var defaultCategories = []string{
	"Web Development", "Mobile Development", "Design",
	"Writing", "Marketing", "Data",
}

func seedCategories(db *gorm.DB) {
	for _, name := range defaultCategories {
		_ = db.FirstOrCreate(&types.Category{}, types.Category{Name: name}).Error
	}
}

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	migrate(db)
	seedCategories(db)

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())

	reg := bus.New()
	bridge := bus.NewBridge(rdb, reg)
	go bridge.Run(ctx)

	dispatcher := notify.NewDispatcher(db, reg)
	coord := lifecycle.NewCoordinator(db, dispatcher)
	chatSvc := chat.NewService(db, reg)

	router := webserver.New(cfg, db, reg, coord, dispatcher, chatSvc)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("WorkMesh API listening on %s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
