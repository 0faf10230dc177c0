// admin-token emite um JWT de operador para as rotas /admin do round-service.
//
//	ADMIN_JWT_SECRET=... go run ./cmd/admin-token -sub ops@example.com -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	httpapi "github.com/radieske/round-settlement-platform/internal/round-service/http"
	"github.com/radieske/round-settlement-platform/internal/shared/config"
)

func main() {
	sub := flag.String("sub", "", "operator identity (jwt subject)")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	if cfg.AdminJWTSecret == "" || *sub == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET and -sub are required")
		os.Exit(2)
	}
	tok, err := httpapi.SignAdminToken([]byte(cfg.AdminJWTSecret), *sub, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
