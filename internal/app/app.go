package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/productivitygo/internal/config"
	"github.com/hitoshi/productivitygo/internal/database"
	"github.com/hitoshi/productivitygo/internal/devproxy"
	"github.com/hitoshi/productivitygo/internal/handler"
	"github.com/hitoshi/productivitygo/internal/logger"
	"github.com/hitoshi/productivitygo/internal/metrics"
	"github.com/hitoshi/productivitygo/internal/middleware"
	"github.com/hitoshi/productivitygo/internal/notify"
	"github.com/hitoshi/productivitygo/internal/profile"
	"github.com/hitoshi/productivitygo/internal/profileclient"
	"github.com/hitoshi/productivitygo/internal/repository"
	"github.com/hitoshi/productivitygo/internal/session"
	"github.com/hitoshi/productivitygo/internal/timezone"
	"github.com/hitoshi/productivitygo/internal/tzsync"
)

// shutdownTimeout はHTTPサーバーのグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

var _ handler.ProfileServiceInterface = (*profile.Service)(nil)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, false)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. デバッグ設定を反映する
	if cfg.IsDebug() {
		logger.SetupDefault(w, true)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINT/SIGTERMで停止する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はctxの終了を停止シグナルとしてRunと同じ処理を行う。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8000"
		}
		return runHealthcheck(ctx, port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.Bool("debug", cfg.IsDebug()),
	)

	switch cmd {
	case CommandProxy:
		return runProxy(ctx, cfg)
	case CommandSync:
		return runSync(ctx, w, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はプロフィールAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	retryCfg := database.RetryConfig{
		MaxAttempts:  cfg.DBRetryMax,
		InitialDelay: cfg.DBRetryDelay,
	}
	if err := database.WithRetry(ctx, retryCfg, db.PingContext); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリとサービス
	profileRepo := repository.NewPostgresProfileRepo(db, retryCfg)
	profileService := profile.NewService(profileRepo, collector)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     middleware.NewJWTVerifier(cfg.JWTSecret, cfg.JWTAudience),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		HealthChecker:     db,
		MetricsRecorder:   collector,
		Gatherer:          registry,
		ProfileService:    profileService,
	})

	// 5. HTTPサーバーの起動
	return serveHTTP(ctx, "API server", &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
}

// runProxy は開発用フロントエンドサーバーを起動する。
func runProxy(ctx context.Context, cfg *config.Config) error {
	h, err := devproxy.NewHandler(devproxy.Config{
		Target:    cfg.ProxyTarget,
		BasePath:  cfg.ProxyBasePath,
		StaticDir: cfg.StaticDir,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build dev proxy: %w", err)
	}

	slog.Info("dev proxy configured",
		slog.String("target", cfg.ProxyTarget),
		slog.String("base_path", cfg.ProxyBasePath),
		slog.String("static_dir", cfg.StaticDir),
	)

	return serveHTTP(ctx, "dev proxy", &http.Server{
		Addr:              ":" + cfg.ProxyPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	})
}

// runSync はタイムゾーン自動同期を実行する。
// SESSION_TOKEN_FILEが指定された場合はファイルを監視し、ログインや再ログインのたびに同期する。
// それ以外はACCESS_TOKENで1回だけ同期する。
func runSync(ctx context.Context, w io.Writer, cfg *config.Config) error {
	if err := cfg.ValidateSync(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	client := profileclient.NewClient(&http.Client{Timeout: cfg.SyncTimeout}, slog.Default(), cfg.APIBaseURL)
	policy := tzsync.NewPolicy(client, timezone.Detect, newNotifier(cfg, w), slog.Default(), collector)
	store := session.NewStore()

	if cfg.SessionTokenFile == "" {
		store.Set(&session.Session{AccessToken: cfg.AccessToken})
		outcome := policy.SyncFrom(ctx, store)
		slog.Info("timezone sync completed", slog.String("outcome", string(outcome)))
		return nil
	}

	source := session.NewFileSource(cfg.SessionTokenFile, store, slog.Default())
	watcher := tzsync.NewWatcher(store, policy, slog.Default())

	slog.Info("watching session token file", slog.String("path", cfg.SessionTokenFile))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })
	if cfg.SyncMetricsPort != "" {
		g.Go(func() error {
			return serveHTTP(gctx, "sync metrics", &http.Server{
				Addr:              ":" + cfg.SyncMetricsPort,
				Handler:           metrics.SetupMetricsRoute(registry),
				ReadHeaderTimeout: 10 * time.Second,
			})
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("timezone sync watcher stopped")
	return nil
}

// newNotifier はSYNC_NOTIFYに応じた通知先を返す。
// terminalは標準エラー出力に表示し、logはwへの構造化ログに含める。
func newNotifier(cfg *config.Config, w io.Writer) notify.Notifier {
	if cfg.SyncNotify == "log" {
		return notify.NewLogNotifier(logger.Setup(w, cfg.IsDebug()))
	}
	return notify.NewWriterNotifier(os.Stderr)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.ValidateMigrate(); err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// serveHTTP はctxが終了するまでサーバーを動かし、終了後にグレースフルシャットダウンする。
func serveHTTP(ctx context.Context, name string, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/health", port), nil)
	if err != nil {
		return fmt.Errorf("health check request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
