package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupGracefulShutdown отменяет контекст при SIGINT/SIGTERM.
//
// Возвращает контекст и функцию очистки, которую следует вызвать через defer:
//
//	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
//	defer shutdown()
//
// Ожидание 429 в dispatcher прерывается отменой контекста, поэтому Ctrl+C
// не висит до конца wait_seconds. Очистка закрывает лог-файл.
func SetupGracefulShutdown(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			Info("Received signal, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
		Close()
	}
}
