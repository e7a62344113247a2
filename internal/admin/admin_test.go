package admin

import (
	"testing"

	"github.com/stakearena/backend/internal/pgtest"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyAdminToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-token"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}

	if !VerifyAdminToken(string(hash), "s3cret-token") {
		t.Error("correct token rejected")
	}
	if VerifyAdminToken(string(hash), "wrong-token") {
		t.Error("wrong token accepted")
	}
	if VerifyAdminToken("not-a-bcrypt-hash", "s3cret-token") {
		t.Error("garbage hash accepted")
	}
}

func TestCreateAndValidateAdminAccount(t *testing.T) {
	db := pgtest.NewDB(t)

	id, err := CreateAdminAccount(db, "ops", "s3cret-token")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	acct, err := ValidateAdminToken(db, id, "s3cret-token")
	if err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if acct.ID != id || !acct.IsAdmin {
		t.Errorf("unexpected account: %+v", acct)
	}

	if _, err := ValidateAdminToken(db, id, "wrong-token"); err == nil {
		t.Error("wrong token must be rejected")
	}
	if _, err := ValidateAdminToken(db, id+1000, "s3cret-token"); err == nil {
		t.Error("unknown admin id must be rejected")
	}
}
