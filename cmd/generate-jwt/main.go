package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/handlers"
)

func main() {
	address := flag.String("address", "0x742d35Cc6634C0532925a3b0F26750C66d78EB66", "wallet address carried in the token")
	role := flag.String("role", dto.RoleUser, "role claim (user or owner)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("JWT_SECRET is not set")
		os.Exit(1)
	}
	if !common.IsHexAddress(*address) {
		fmt.Printf("Invalid address: %s\n", *address)
		os.Exit(1)
	}
	if *role != dto.RoleUser && *role != dto.RoleOwner {
		fmt.Printf("Invalid role: %s\n", *role)
		os.Exit(1)
	}

	tokens := handlers.NewTokenIssuer(secret, *ttl)
	tokenString, expiresAt, err := tokens.Issue(common.HexToAddress(*address), *role)
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  Address: %s\n", common.HexToAddress(*address).Hex())
	fmt.Printf("  Role: %s\n", *role)
	fmt.Printf("  Expires: %s\n", expiresAt)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/policy\n", tokenString)
}
