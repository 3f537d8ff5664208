// Package devproxy は開発用のフロントエンドサーバーを提供する。
// ビルド済み静的ファイルをベースパス配下で配信し、/api 以下をバックエンドへ中継する。
package devproxy

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/productivitygo/internal/middleware"
	"github.com/hitoshi/productivitygo/internal/model"
)

// apiPrefix はバックエンドへ中継するパスのプレフィックス。中継時に取り除く。
const apiPrefix = "/api"

// Config は開発プロキシの設定。
type Config struct {
	Target    string // バックエンドのURL（例: http://127.0.0.1:8000）
	BasePath  string // 静的ファイルのベースパス（例: /productivityGo/）
	StaticDir string // ビルド済み静的ファイルのディレクトリ
}

// NewHandler は開発プロキシのHTTPハンドラーを生成する。
func NewHandler(cfg Config, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("プロキシ先URLのパースに失敗しました: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("プロキシ先URLにはスキームとホストが必要です: %q", cfg.Target)
	}

	base := normalizeBase(cfg.BasePath)

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))

	proxy := newReverseProxy(target, logger)
	r.Handle(apiPrefix, proxy)
	r.Handle(apiPrefix+"/*", proxy)

	if base != "/" {
		r.Get("/", redirectTo(base))
		r.Get(strings.TrimSuffix(base, "/"), redirectTo(base))
	}
	r.Handle(base+"*", http.StripPrefix(strings.TrimSuffix(base, "/"), newSPAHandler(cfg.StaticDir)))

	return r, nil
}

// newReverseProxy は /api プレフィックスを除去し、Hostをプロキシ先に書き換えるリバースプロキシを生成する。
func newReverseProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			stripped := strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			if stripped == "" {
				stripped = "/"
			}
			pr.Out.URL.Path = stripped
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("backend unreachable",
				slog.String("path", r.URL.Path),
				slog.String("target", target.String()),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusBadGateway, &model.APIError{
				Code:     "BACKEND_UNAVAILABLE",
				Message:  "バックエンドに接続できません。",
				Category: "system",
				Action:   "APIサーバーが起動しているか確認してください。",
			})
		},
	}
}

// newSPAHandler は静的ファイルを配信し、存在しないパスにはindex.htmlを返すハンドラーを生成する。
func newSPAHandler(dir string) http.Handler {
	root := os.DirFS(dir)
	files := http.FileServerFS(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "."
		}
		if _, err := fs.Stat(root, name); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			// クライアントサイドルーティング
			http.ServeFileFS(w, r, root, "index.html")
			return
		}
		files.ServeHTTP(w, r)
	})
}

func redirectTo(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, location, http.StatusFound)
	}
}

// normalizeBase はベースパスを "/xxx/" の形式にそろえる。
func normalizeBase(base string) string {
	base = strings.Trim(base, "/")
	if base == "" {
		return "/"
	}
	return "/" + base + "/"
}
