// wbreports downloads the daily sales report of every seller cabinet from the
// Wildberries console, fixes its header and archives it by date.
//
// Usage:
//
//	wbreports run [--date DD.MM.YYYY]
//	wbreports api [--date DD.MM.YYYY]
//	wbreports normalize FILE...
//	wbreports login
//	wbreports schedule --cron "0 7 * * *"
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs the CLI and maps the outcome to an exit code. Panics are
// logged with their stack and reported as a failure.
func execute(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			fmt.Fprintf(os.Stderr, "PANIC RECOVERED: %v\n%s\n", r, stack)
			slog.Default().Error("wbreports panicked",
				slog.Any("panic", r),
				slog.String("stack", stack))
			code = 1
		}
	}()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
