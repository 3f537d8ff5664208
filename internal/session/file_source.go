package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileSource はトークンファイルを読み込み、変更を監視してStoreへ反映する。
// ファイルには生のアクセストークン、または access_token を含むJSONを置く。
// ファイルが空または削除された場合はログアウトとして扱う。
type FileSource struct {
	path   string
	store  *Store
	logger *slog.Logger
}

// NewFileSource はFileSourceを生成する。
func NewFileSource(path string, store *Store, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   filepath.Clean(path),
		store:  store,
		logger: logger,
	}
}

// Load はトークンファイルを1回読み込んでStoreへ反映する。
func (f *FileSource) Load() error {
	token, err := ReadTokenFile(f.path)
	if err != nil {
		return err
	}
	f.store.Set(&Session{AccessToken: token})
	return nil
}

// Run はトークンファイルを読み込んだ後、ctxが終了するまで変更を監視する。
// エディタやアトミックな置き換えに追従するため、親ディレクトリを監視する。
func (f *FileSource) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ファイル監視の初期化に失敗しました: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("ディレクトリの監視に失敗しました %s: %w", dir, err)
	}

	f.reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.logger.Debug("token file changed", slog.String("op", event.Op.String()))
			f.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("token file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (f *FileSource) reload() {
	token, err := ReadTokenFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("failed to read token file",
				slog.String("path", f.path),
				slog.String("error", err.Error()),
			)
		}
		f.store.Clear()
		return
	}
	f.store.Set(&Session{AccessToken: token})
}

// ReadTokenFile はトークンファイルからアクセストークンを読み取る。
// 空ファイルの場合は空文字を返す。
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return parseToken(data)
}

// parseToken は生トークンまたはJSON（{"access_token": "..."}）からトークンを取り出す。
func parseToken(data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if !strings.HasPrefix(text, "{") {
		return text, nil
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", fmt.Errorf("トークンファイルのJSONが不正です: %w", err)
	}
	return strings.TrimSpace(payload.AccessToken), nil
}
