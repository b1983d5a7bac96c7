// Command inkpost はブログAPIサーバー、クリーンアップワーカー、管理用サブコマンドを提供する。
//
// 使い方:
//
//	inkpost [serve|worker|migrate|createadmin|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/inkpost/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "inkpost: %v\n", err)
		os.Exit(1)
	}
}
