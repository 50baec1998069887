//go:build tinygo

package sim

import "github.com/jangala-dev/tinygo-uartx/uartx"

// On the board the peer listens on the spare hardware UART.
func newPort() rxPort { return uartx.UART1 }
