package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/kwanjai/budbook/internal/database"
	"github.com/kwanjai/budbook/internal/model"
	"github.com/kwanjai/budbook/internal/utils"
)

// testPassHash is a MinCost bcrypt hash of "hunter2!" shared by fixtures
// so each test does not pay for hashing.
var testPassHash string

func init() {
	h, err := utils.HashPassword("hunter2!", bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	testPassHash = h
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := database.New(sqlDB, database.SQLite)
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SeedOptions{
		AdminName:         "root",
		AdminPasswordHash: testPassHash,
		FirstUsername:     "founder",
		FirstUserEmail:    "founder@example.com",
		FirstUserPassHash: testPassHash,
	}))
	return db
}

func createUser(t *testing.T, db *database.DB, username string, referredBy *int64) model.User {
	t.Helper()
	u := model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: testPassHash,
		IsConsumer:   true,
		IsApproved:   referredBy == nil,
		ReferredBy:   referredBy,
		ReferralCode: uuid.NewString(),
	}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), &u))
	return u
}

func createBud(t *testing.T, db *database.DB, ownerID int64, name string) model.Bud {
	t.Helper()
	b := model.Bud{
		StrainNameEN: name,
		Category:     model.CategoryHybrid,
		Status:       model.BudAvailable,
		CreatedBy:    ownerID,
	}
	require.NoError(t, NewBudRepo(db).Create(context.Background(), &b))
	return b
}

func createActivity(t *testing.T, db *database.DB, opens, closes time.Time) model.Activity {
	t.Helper()
	a := model.Activity{
		Title:       "Harvest Cup",
		OpensAt:     opens,
		ClosesAt:    closes,
		Eligibility: "any",
		Status:      model.ActivityOpen,
	}
	require.NoError(t, NewActivityRepo(db).Create(context.Background(), &a))
	return a
}
