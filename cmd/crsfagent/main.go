package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tbsagent/crsfagent/pkg/crsf"
	"github.com/tbsagent/crsfagent/pkg/transport"
)

// Configuration flags
var (
	useTCP       = flag.Bool("tcp", false, "Connect over TCP instead of a serial port")
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", transport.DefaultBaudRate, "Serial baud rate")
	host         = flag.String("host", transport.DefaultHost, "TCP host to dial")
	port         = flag.Int("port", transport.DefaultPort, "TCP port to dial")
	dialTimeout  = flag.Duration("dial-timeout", 5*time.Second, "TCP dial timeout")
	verbose      = flag.Bool("verbose", false, "Log every received frame and its explainer text")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting CRSF agent")

	orch, err := crsf.NewReconnectingOrchestrator(dial, *verbose)
	if err != nil {
		log.Fatalf("Failed to open transport: %v", err)
	}
	log.Printf("Transport open")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("Shutting down...")
		orch.Stop()
	}()

	if err := orch.Run(); err != nil {
		log.Fatalf("Agent stopped: %v", err)
	}
}

func dial() (transport.Transport, error) {
	if *useTCP {
		log.Printf("Dialing %s:%d", *host, *port)
		return transport.DialTCP(*host, *port, *dialTimeout)
	}
	log.Printf("Opening %s at %d baud", *serialDevice, *baudRate)
	return transport.OpenUART(*serialDevice, *baudRate)
}
