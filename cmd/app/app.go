package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	v1 "wyr/api/v1"
	"wyr/api/v1/handlers"
	"wyr/internal/auth"
	"wyr/internal/config"
	"wyr/internal/engine"
	"wyr/internal/prefs"
	"wyr/internal/store"
	"wyr/internal/store/postgres"
	"wyr/pkg/async"
	"wyr/pkg/logger"
	"wyr/pkg/server"
	"wyr/pkg/third/geetest"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp/reuseport"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	logger.Configure(logger.ParseLevel(cfg.Log.Level), cfg.Log.File)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("未加载 .env 文件，使用进程环境变量")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("配置无效")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, cleanup := wire(ctx, cfg)
	defer cleanup()

	engineErr := async.ErrAble(func() error {
		return deps.Engine.Run(ctx)
	})
	go func() {
		if err := <-engineErr; err != nil {
			log.Error().Stack().Err(err).Msg("快照订阅已停止")
		}
	}()

	app := server.NewFiber(server.Options{
		ErrorHandler: handlers.ErrorHandler,
		RateLimit:    cfg.App.RateLimit,
	})
	v1.SetupRoutes(app, deps)

	run(app, cfg.App)
}

// wire 按配置选择文档库、偏好存储和账户后端
func wire(ctx context.Context, cfg config.Config) (*handlers.Deps, func()) {
	var (
		ds       store.DocumentStore
		ps       prefs.Store
		provider auth.Provider
		checks   []func() error
		closers  []func()
	)

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("数据库连接失败")
		}
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("数据库连接失败")
		}
		if err := postgres.CreateSchema(ctx, pool); err != nil {
			log.Fatal().Stack().Err(err).Msg("建表失败")
		}
		log.Info().Msg("数据库已就绪")

		ds = postgres.New(pool)
		provider = auth.NewPostgres(pool)
		closers = append(closers, func() {
			log.Info().Msg("关闭数据库连接中...")
			pool.Close()
		})
	default:
		log.Warn().Msg("使用内存文档库，重启后数据丢失")
		ds = store.NewMemory()
		provider = auth.NewMemory()
	}

	switch cfg.Prefs.Backend {
	case config.BackendNATS:
		n, err := prefs.ConnectNATS(ctx, cfg.Prefs.URL, cfg.Prefs.Bucket)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("NATS 连接失败")
		}
		ps = n
		checks = append(checks, n.HealthCheck)
		closers = append(closers, func() { _ = n.Close() })
	default:
		ps = prefs.NewMemory()
	}

	deps := &handlers.Deps{
		Engine:       engine.New(ds),
		Sessions:     engine.NewSessions(ps),
		Auth:         provider,
		Tokens:       auth.NewTokens(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL),
		SystemKey:    cfg.App.SystemKey,
		HealthChecks: checks,
	}
	if cfg.Captcha.Enabled() {
		deps.Captcha = geetest.New(cfg.Captcha.ID, cfg.Captcha.Key)
	}

	return deps, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func run(app *fiber.App, cfg config.App) {
	port := cfg.Port
	if cfg.IsDev() {
		log.Info().Msg("开发模式已启用")
		if err := app.Listen(port); err != nil {
			log.Error().Err(err).Msg("服务已退出")
		}
		return
	}

	go func() {
		ln, err := reuseport.Listen("tcp4", port)
		if err != nil {
			log.Panic().Err(err).Msg("无法监听")
		}

		if err = app.Listener(ln); err != nil {
			log.Panic().Err(err).Msg("无法监听")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	sig := <-c

	if sig == syscall.SIGHUP {
		log.Info().Msg("正在热更新服务端...")
		exe, _ := os.Executable()
		cmd := exec.Command(exe)
		cmd.Env = os.Environ()
		if err := cmd.Start(); err != nil {
			log.Error().Err(err).Msg("启动新端失败>_<")
			return
		}
	}
	_ = app.Shutdown()
}
