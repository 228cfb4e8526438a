//go:build histdebug

package resolver

import (
	"fmt"
	"log/slog"
)

func invariantViolated(_ *slog.Logger, msg string, args ...any) {
	panic(fmt.Sprintf("resolver: %s %v", msg, args))
}
