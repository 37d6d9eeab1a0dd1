package signals

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mudler/xlog"
)

var (
	signalHandlers      []func()
	signalHandlersMutex sync.Mutex
	signalHandlersOnce  sync.Once
)

// RegisterGracefulTerminationHandler queues fn to run on SIGINT/SIGTERM.
// Handlers run in reverse registration order, then the process exits.
func RegisterGracefulTerminationHandler(fn func()) {
	signalHandlersOnce.Do(func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		go signalHandler(c)
	})

	signalHandlersMutex.Lock()
	defer signalHandlersMutex.Unlock()
	signalHandlers = append(signalHandlers, fn)
}

func signalHandler(c chan os.Signal) {
	sig := <-c
	xlog.Info("Received termination signal, shutting down", "signal", sig.String())

	signalHandlersMutex.Lock()
	defer signalHandlersMutex.Unlock()
	for i := len(signalHandlers) - 1; i >= 0; i-- {
		signalHandlers[i]()
	}

	os.Exit(0)
}
