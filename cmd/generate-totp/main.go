package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp/totp"
)

func main() {
	newSecret := flag.Bool("new", false, "generate a fresh owner TOTP secret")
	account := flag.String("account", "owner", "account name embedded in the provisioning URI")
	flag.Parse()

	if *newSecret {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "eternis-leveler",
			AccountName: *account,
		})
		if err != nil {
			fmt.Printf("Error generating TOTP secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Secret: %s\n", key.Secret())
		fmt.Printf("URI: %s\n", key.URL())
		fmt.Println("Set OWNER_TOTP_SECRET or auth.owner_totp_secret to the secret above.")
		return
	}

	secret := os.Getenv("OWNER_TOTP_SECRET")
	if secret == "" {
		fmt.Println("OWNER_TOTP_SECRET is not set (use -new to create one)")
		os.Exit(1)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		fmt.Printf("Error generating TOTP code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Current TOTP Code: %s\n", code)
	fmt.Printf("Valid for: ~30 seconds\n")
}
