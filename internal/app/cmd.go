package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はプロフィールAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandProxy は開発用フロントエンドサーバー（静的配信と/apiの中継）を起動することを示す。
	CommandProxy Command = "proxy"
	// CommandSync はタイムゾーン自動同期クライアントを実行することを示す。
	CommandSync Command = "sync"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "proxy":
		return CommandProxy
	case "sync":
		return CommandSync
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
