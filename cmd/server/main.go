// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Corphon/ScriptBreakdown/internal/app"
	"github.com/Corphon/ScriptBreakdown/internal/config"
	"github.com/Corphon/ScriptBreakdown/internal/di"
)

func main() {
	log.Println("🚀 启动 ScriptBreakdown 服务器...")

	// 1. load the base configuration
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. create the working directories
	createDirectories(baseConfig)
	log.Println("✅ 目录结构创建完成")

	// 3. config, logging, services and routes
	if err := app.Initialize(baseConfig.DataDir); err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	log.Printf("✅ 依赖注入容器初始化完成，服务数量: %d", len(di.GetContainer().GetNames()))

	if err := performHealthCheck(); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}

	cfg := app.GetApp().GetConfig()
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	log.Printf("🔗 远程分析服务: %s", cfg.APIBaseURL)

	// 4. serve until interrupted
	if err := app.Run(); err != nil {
		log.Fatalf("❌ 服务器异常退出: %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}

// performHealthCheck verifies the core services are registered
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{di.ServiceConfig, di.ServiceState, di.ServiceRemote, di.ServiceStore}
	for _, serviceName := range criticalServices {
		if !container.Has(serviceName) {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}

// createDirectories creates the data and log directories
func createDirectories(cfg *config.Config) {
	for _, dir := range []string{cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}
}
