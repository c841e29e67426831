package main

import (
	"fmt"
	"os"

	"gymgate/pkg/security"
)

// gatekey provisions the shared secret for gate devices: it prints a
// fresh secret (configure it on the device) and the argon2id hash to put
// under ACCESS.GATE_KEY_HASH in config.yaml.
func main() {
	secret, err := security.GenerateBase64Secret(32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate secret: %v\n", err)
		os.Exit(1)
	}

	hash, err := security.HashArgon2(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash secret: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("gate key:  %s\n", secret)
	fmt.Printf("key hash:  %s\n", hash)
}
