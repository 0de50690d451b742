// cmd/demo/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptBreakdown/internal/config"
	"github.com/Corphon/ScriptBreakdown/internal/mockapi"
	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo1234"
)

func main() {
	log.Println("🎬 启动剧本分析演示服务...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	server := mockapi.New(mockapi.Options{
		Secret:      []byte(cfg.JWTSecret),
		RequireAuth: true,
		Logger:      utils.GetLogger(),
	})
	seed(server)

	srv := &http.Server{
		Addr:    ":" + cfg.DemoPort,
		Handler: server.Handler(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ 启动演示服务失败: %v", err)
		}
	}()

	log.Printf("🌐 演示服务运行在端口 %s", cfg.DemoPort)
	log.Printf("👤 演示账号: %s / %s", demoEmail, demoPassword)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭演示服务...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ 演示服务强制关闭: %v", err)
	}
	utils.GetLogger().Sync()
	log.Println("✅ 演示服务已关闭")
}

// seed adds a demo account and a few analyzed scripts
func seed(server *mockapi.Server) {
	if _, err := server.AddUser(models.RegisterRequest{
		Email:    demoEmail,
		Username: "demo",
		Password: demoPassword,
		FullName: "Demo Producer",
	}); err != nil {
		log.Printf("⚠️ 创建演示账号失败: %v", err)
	}

	server.AddScript("kampung_nights_ep1.pdf", 184_320, models.ScriptStatusCompleted)
	server.AddScript("harbour_lights_draft.docx", 96_512, models.ScriptStatusAwaitingFeedback)
	server.AddScript("midnight_market.txt", 41_200, models.ScriptStatusCompletedWithFeedback)
	log.Println("✅ 演示数据已加载")
}
