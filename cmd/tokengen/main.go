// Command tokengen mints a session token for local runs and smoke tests.
//
//	JWT_SIGNING_KEY=dev tokengen -user 0b7f7b52-0c3e-45a4-9f3e-6a3b2f0d5e21 -role police
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ak652231/TraceQ-sub001/internal/identity"
	"github.com/ak652231/TraceQ-sub001/internal/platform/config"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
)

func main() {
	userFlag := flag.String("user", "", "user id (uuid)")
	roleFlag := flag.String("role", string(id.RoleReporter), "role: user or police")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*userFlag, *roleFlag, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run(rawUser, rawRole string, ttl time.Duration) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return err
	}
	role, err := id.ParseRole(rawRole)
	if err != nil {
		return err
	}
	token, err := identity.NewTokens(cfg.JWT.SigningKey, cfg.JWT.Issuer).Issue(userID, role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
