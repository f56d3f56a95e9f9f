package hashsecret

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"scangate/internal/auth"
)

// Run produces an Argon2id PHC string for the credential file. The secret
// comes from -secret or, when omitted, a single line on stdin.
func Run(args []string) error {
	fs := flag.NewFlagSet("hash-secret", flag.ContinueOnError)
	var secret string
	fs.StringVar(&secret, "secret", "", "secret to hash (reads stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if secret == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading secret: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}

	h, err := auth.HashSecret(secret, auth.DefaultArgon2Params())
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}
