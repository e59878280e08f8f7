package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/models/dtos/requests"
	"schoolpoints/relay/internal/services"
)

// tenantctl registers an institution from the command line, for operators
// bootstrapping a tenant without going through the public API.
func main() {
	name := flag.String("name", "", "institution name (required)")
	email := flag.String("email", "", "contact email")
	password := flag.String("password", "", "admin password (required, min 8 chars)")
	dataDir := flag.String("data-dir", "./data", "tenant store directory")
	flag.Parse()

	if *name == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := logging.Init("development"); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logging.Close()

	if _, err := db.InitPostgresORM(db.PostgresDSN()); err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	if err := db.MigrateCentral(db.PgDB); err != nil {
		log.Fatalf("migrate central store: %v", err)
	}

	stores := db.NewTenantStores(*dataDir)
	defer stores.Close()

	svc := services.NewRegisterService(repositories.NewTenantRepository(db.PgDB), stores)
	result, err := svc.Register(context.Background(), &requests.RegisterRequest{
		InstitutionName: *name,
		Email:           *email,
		Password:        *password,
	})
	if err != nil {
		log.Fatalf("register institution: %v", err)
	}

	fmt.Println("Tenant ID:", result.TenantID)
	fmt.Println("API Key:  ", result.APIKey)
}
