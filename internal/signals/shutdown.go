package signals

import (
	"os"
	"os/signal"
	"syscall"
)

// Notify returns a channel that receives on SIGINT or SIGTERM
func Notify() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch
}
