// Command vapidkeys prints a fresh VAPID key pair as .env lines.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/push"
)

func main() {
	subject := flag.String("subject", "mailto:admin@example.com", "VAPID subject (mailto: or https: URL)")
	flag.Parse()

	keys, err := push.GenerateVAPID(*subject)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\nVAPID_SUBJECT=%s\n", keys.PublicKey, keys.PrivateKey, keys.Subject)
}
