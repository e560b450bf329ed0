package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *LoggerClient and binds it to the Logger interface.
//
// Dependencies required by this module:
//   - a logger.Config in the container
var FXModule = fx.Module("logger",
	fx.Provide(
		NewLoggerClient,
		func(l *LoggerClient) Logger { return l },
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle flushes buffered entries when the application stops.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *LoggerClient) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync on stderr returns EINVAL/ENOTTY on some platforms; nothing useful to do with it.
			_ = client.Zap.Sync()
			return nil
		},
	})
}
