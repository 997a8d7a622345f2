// Conductor CLI — выполнение задач из командной строки.
//
// Использование:
//
//	conductor [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run    Выполнить задачи и их зависимости
//	plan   Показать порядок и стратегию без выполнения
//	tasks  Список зарегистрированных задач
//	runs   Итоги на сервере (list, show)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Conductor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		var notCompleted *cli.RunNotCompletedError
		if !errors.As(err, &notCompleted) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
