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

	"watch-gateway/internal/config"
)

const (
	defaultConfigFilePath  = "etc/app.yaml"
	configPathEnvVariable  = "WATCH_GATEWAY_CONFIG"
	gracefulShutdownPeriod = 5 * time.Second
)

// ApplicationRunner 应用启动器
// 负责配置加载、上下文装配、各后台任务的启动与优雅停机
type ApplicationRunner struct {
	configPath string
}

// NewApplicationRunner 创建应用启动器
// 配置路径优先取环境变量,便于部署时覆盖
func NewApplicationRunner() *ApplicationRunner {
	configPath := os.Getenv(configPathEnvVariable)
	if configPath == "" {
		configPath = defaultConfigFilePath
	}
	return &ApplicationRunner{configPath: configPath}
}

// Run 运行应用直到收到退出信号
func (runner *ApplicationRunner) Run() {
	configuration := config.MustLoad(runner.configPath)

	appContext, err := BuildAppContext(configuration)
	if err != nil {
		// 致命启动错误:凭证缺失或非法时拒绝启动
		log.Fatalf("[App] 装配应用失败: %v", err)
	}
	defer appContext.Close()

	if err := appContext.Coordinator.Start(); err != nil {
		log.Fatalf("[App] 启动协调器失败: %v", err)
	}

	sourceCtx, cancelSource := context.WithCancel(context.Background())
	sourceDone := make(chan struct{})
	go func() {
		defer close(sourceDone)
		appContext.Source.Run(sourceCtx)
	}()

	httpServer := runner.startHTTPServer(appContext)

	runner.waitForShutdownSignal()

	// 停机顺序:先停实时源并等其退出,再停协调器(等在途投递与轮询任务汇合),最后关 HTTP
	cancelSource()
	<-sourceDone
	appContext.Coordinator.Stop()
	runner.shutdownHTTPServer(httpServer)
}

// startHTTPServer 启动检查接口服务
func (runner *ApplicationRunner) startHTTPServer(appContext *AppContext) *http.Server {
	router := buildRouter(appContext)
	server := &http.Server{
		Addr:    appContext.Config.App.Addr,
		Handler: router,
	}

	go func() {
		log.Printf("[App] HTTP 服务监听于 %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[App] HTTP 服务异常退出: %v", err)
		}
	}()
	return server
}

// shutdownHTTPServer 优雅关闭 HTTP 服务
func (runner *ApplicationRunner) shutdownHTTPServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[App] HTTP 服务关闭失败: %v", err)
	}
}

// waitForShutdownSignal 阻塞等待退出信号
func (runner *ApplicationRunner) waitForShutdownSignal() {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	received := <-signalChannel
	log.Printf("[App] 收到信号 %s,开始优雅停机", received)
}
