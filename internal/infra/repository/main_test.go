package repository

import (
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/totegamma/ethsign/internal/infra/database"
	"github.com/totegamma/ethsign/internal/infra/database/models"
)

func lookupPostgresURL() string {
	con, ok := os.LookupEnv("POSTGRES_TEST_DATABASE")
	if !ok {
		return ""
	}
	return con
}

// openTestDB migrates a clean schema or skips when no database is configured.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := lookupPostgresURL()
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DATABASE not set")
	}

	db, err := database.NewPostgres(dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	err = db.Migrator().DropTable(
		&models.ProofOfAgreement{},
		&models.ProofOfSignature{},
		&models.AttestationParticipant{},
		&models.Attestation{},
		&models.TokenCollection{},
		&models.Schema{},
		&models.Sequence{},
	)
	if err != nil {
		t.Fatalf("failed to drop tables: %v", err)
	}
	if err := database.MigratePostgres(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}
