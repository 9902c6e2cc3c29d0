package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/microinject/internal/api"
	"github.com/wfunc/microinject/internal/config"
	"github.com/wfunc/microinject/internal/database"
	"github.com/wfunc/microinject/internal/errors"
	"github.com/wfunc/microinject/internal/hardware"
	"github.com/wfunc/microinject/internal/logger"
	"github.com/wfunc/microinject/internal/service"
	ws "github.com/wfunc/microinject/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	driver   *hardware.Driver
	hub      *ws.Hub
	injector *service.InjectorService
	auth     *service.AuthService
	httpSrv  *http.Server

	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	// 创建服务器实例
	server := NewServer(cfg)

	// 启动服务器
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	// 等待退出信号
	server.WaitForShutdown()

	// 优雅关闭
	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动微量注射控制服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	s.initHardware()
	s.initServices()

	if err := s.startHTTPServer(); err != nil {
		return err
	}

	// 启动时自动连接串口（可选）
	if s.cfg.Serial.AutoConnect {
		if err := s.injector.Connect(s.cfg.Serial.Port, s.cfg.Serial.BaudRate); err != nil {
			// 自动连接失败不阻止启动，操作员可在界面上重试
			s.logger.Warn("串口自动连接失败",
				zap.String("port", s.cfg.Serial.Port),
				zap.Error(err))
		}
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
		zap.Bool("mock_mode", s.cfg.Serial.MockMode),
	)

	return nil
}

// reloadConfig 应用可热更新的配置项
// 串口、数据库、HTTP监听需要重启才生效；运动参数原地更新，
// API层持有的MotionConfig指针随之看到新的注射器标定
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg.Motion = newCfg.Motion

	s.logger.Info("配置重新加载完成",
		zap.Float64("syringe_volume_ul", s.cfg.Motion.SyringeVolumeUL),
		zap.Float64("syringe_stroke_mm", s.cfg.Motion.SyringeStrokeMM))
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// initHardware 初始化串口传输与驱动
func (s *Server) initHardware() {
	s.logger.Info("初始化串口驱动...",
		zap.String("port", s.cfg.Serial.Port),
		zap.Int("baud_rate", s.cfg.Serial.BaudRate),
		zap.Bool("mock_mode", s.cfg.Serial.MockMode))

	var opener hardware.PortOpener
	if s.cfg.Serial.MockMode {
		// 模拟固件，用于没有硬件时的联调
		opener = hardware.MockOpener(0)
	} else {
		opener = hardware.OpenTarmPort(s.cfg.Serial.SettleDelay)
	}

	tr := hardware.NewTransport(hardware.TransportConfig{
		Port:        s.cfg.Serial.Port,
		BaudRate:    s.cfg.Serial.BaudRate,
		ReadTimeout: s.cfg.Serial.ReadTimeout,
		SettleDelay: s.cfg.Serial.SettleDelay,
	}, opener)

	s.driver = hardware.NewDriver(tr, hardware.DriverConfig{
		MaxProgramSteps: s.cfg.Motion.MaxProgramSteps,
		MaxSpeed:        s.cfg.Motion.MaxSpeed,
		MaxAccel:        s.cfg.Motion.MaxAccel,
	})
}

// initServices 初始化服务层与WebSocket
func (s *Server) initServices() {
	s.hub = ws.NewHub(s.logger)
	go s.hub.Run()

	s.injector = service.NewInjectorService(s.driver, database.GetDB(), s.hub, s.logger)
	s.auth = service.NewAuthService(&s.cfg.Security, s.logger)
}

// startHTTPServer 启动HTTP服务器
func (s *Server) startHTTPServer() error {
	switch s.cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := api.NewRouter(s.cfg, database.GetDB(), s.injector, s.auth, s.hub, s.logger)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      router.GetEngine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP服务器监听中", zap.String("address", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务器异常退出", zap.Error(err))
		}
	}()

	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))

	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 先停HTTP，拒绝新请求
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务器关闭超时", zap.Error(err))
		}
	}

	// 断开串口并落盘挂起的日志
	if s.injector != nil {
		if err := s.injector.Disconnect(); err != nil {
			s.logger.Debug("断开串口", zap.Error(err))
		}
		s.injector.Close()
	}
	if s.driver != nil {
		s.driver.Stop()
	}

	// 触发其余goroutine退出
	s.cancel()

	// 等待服务goroutine收尾或超时
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
	}

	// 关闭数据库
	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	s.logger.Info("服务器关闭完成")
	return nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("microinject server\n")
	fmt.Printf("  Version:    %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}
