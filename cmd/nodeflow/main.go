// Nodeflow CLI — запуск и проверка графов локально, управление
// графами и runs через HTTP API.
//
// Использование:
//
//	nodeflow [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run FILE      Выполнить документ графа локально
//	validate FILE Проверить документ графа
//	types         Список типов узлов
//	graph         Графы на сервере (push, list, show, validate, run, delete)
//	run-show ID   Сохранённый run и его отчёт
//	runs          Список runs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Nodeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCmd(version, cli.LocalConfig{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
