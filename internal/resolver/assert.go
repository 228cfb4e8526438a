//go:build !histdebug

package resolver

import "log/slog"

func invariantViolated(logger *slog.Logger, msg string, args ...any) {
	logger.Error("resolver: "+msg+", treating as no chain", args...)
}
