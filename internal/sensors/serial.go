package sensors

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// OpenSerial opens the GPS UART. Reads return whatever arrived within
// readTimeoutMS, possibly nothing, so a periodic task never blocks for long.
func OpenSerial(port string, baud uint, readTimeoutMS uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: readTimeoutMS,
		ParityMode:            serial.PARITY_NONE,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", port, err)
	}
	log.WithField("port", port).Infof("serial port opened at %d baud", baud)
	return p, nil
}
