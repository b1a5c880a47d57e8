package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/obscura/internal/api"
	"github.com/wfunc/obscura/internal/config"
	"github.com/wfunc/obscura/internal/database"
	"github.com/wfunc/obscura/internal/dice"
	"github.com/wfunc/obscura/internal/errors"
	"github.com/wfunc/obscura/internal/game"
	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/store"
	"github.com/wfunc/obscura/internal/utils"
	"github.com/wfunc/obscura/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfgMu  sync.RWMutex
	cfg    *config.Config
	logger *zap.Logger

	db       *gorm.DB
	store    *store.Store
	services *game.Services
	hub      *websocket.Hub
	http     *http.Server

	// 关闭控制
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
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
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

	setupSystem(&cfg.System)
	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Error("服务器启动失败", zap.Error(err))
		os.Exit(1)
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
	s.logger.Info("正在启动 Obscura 跑团桌服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功", zap.String("http", s.http.Addr))
	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	if err := s.initDatabase(); err != nil {
		return err
	}

	st, err := store.New(s.db,
		store.WithLogger(logger.WithModule(logger.ModuleStore)),
		store.WithWriteTimeout(s.cfg.Table.WriteTimeout),
	)
	if err != nil {
		return err
	}
	s.store = st

	s.services = game.NewServices(&game.ServicesConfig{
		Store:   st,
		Source:  newSource(s.cfg.Table.Seed, s.logger),
		Options: game.OptionsFromConfig(&s.cfg.Table),
		Logger:  logger.WithModule(logger.ModuleTable),
	})

	handler := websocket.NewTableHandler(s.services, s.cfg.Table.WriteTimeout, logger.WithModule(logger.ModuleWebSocket))
	s.hub = websocket.NewHub(handler, websocket.HubOptionsFromConfig(&s.cfg.WebSocket), logger.WithModule(logger.ModuleWebSocket))

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	jwt := utils.NewJWTManager(
		s.cfg.Security.JWT.Secret,
		s.cfg.Security.JWT.Issuer,
		time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour,
	)
	router := api.NewRouter(&api.RouterConfig{
		DB:       s.db,
		Services: s.services,
		Hub:      s.hub,
		JWT:      jwt,
		Logger:   logger.WithModule(logger.ModuleAPI),

		WebSocketPath: s.cfg.WebSocket.Path,
	})

	s.http = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// newSource 配置了种子时使用可复现的随机源
func newSource(seed int64, log *zap.Logger) dice.Source {
	if seed != 0 {
		log.Warn("使用固定种子的随机源", zap.Int64("seed", seed))
		return dice.NewSeededSource(seed)
	}
	return dice.NewCryptoSource()
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	dbCfg := s.cfg.Database
	if dbCfg.Driver == "sqlite" && dbCfg.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbCfg.DSN), 0o755); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "创建数据目录失败")
		}
	}

	if err := database.Init(&dbCfg); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	s.db = database.GetDB()

	if err := database.AutoMigrate(); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "监听端口失败")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()

	s.logger.Info("所有服务启动完成")
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))

	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config().Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
	}

	// 取消主上下文，Hub 随之关闭所有连接
	s.cancel()

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
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	return s.closeComponents()
}

// closeComponents 关闭组件
func (s *Server) closeComponents() error {
	s.logger.Info("关闭组件...")

	if s.store != nil {
		s.store.Close()
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
		return err
	}

	s.logger.Info("所有组件已关闭")
	return nil
}

// config 当前配置；配置监听协程会替换它
func (s *Server) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// reloadConfig 重新加载配置
//
// 只有日志级别会热更新；跑团桌与网络参数需要重启生效。
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	if newCfg.Log.Level != s.cfg.Log.Level {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	}
	if newCfg.Table != s.cfg.Table || newCfg.Server != s.cfg.Server {
		s.logger.Warn("跑团桌或服务器参数已变化，重启后生效")
	}
	s.cfg = newCfg

	s.logger.Info("配置重新加载完成")
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Obscura 跑团桌服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("Obscura 跑团桌服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  obscura-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Printf("  %s_SERVER_PORT        监听端口\n", config.EnvPrefix)
	fmt.Printf("  %s_DATABASE_DSN       数据库连接串\n", config.EnvPrefix)
	fmt.Printf("  %s_SECURITY_JWT_SECRET 令牌签名密钥\n", config.EnvPrefix)
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  obscura-server -config=/path/to/config.yaml")
	fmt.Println("  obscura-server -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("  OBSCURA  ·  Call of Cthulhu table server")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("版本: %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("数据库: %s | 聊天窗口: %d\n", cfg.Database.Driver, cfg.Table.ChatWindow)
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
