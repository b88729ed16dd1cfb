package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"book-chat/internal/bootstrap"
)

func main() {
	// 1. 创建并初始化应用
	app, err := bootstrap.NewApp()
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	// 2. 启动应用 (Hub、Worker、HTTP 服务器)
	app.Start()

	// 3. 等待中断信号以优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.Log.Info("Shutdown signal received")

	// 4. 执行优雅关闭
	app.Shutdown()
}
