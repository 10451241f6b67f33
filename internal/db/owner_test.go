package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOwnerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestEnsureOwnerSetsAndRotatesPasscode(t *testing.T) {
	gdb := setupOwnerTestDB(t)

	if err := EnsureOwner(gdb, "secret"); err != nil {
		t.Fatalf("EnsureOwner failed: %v", err)
	}
	if _, err := VerifyOwner(gdb, "secret"); err != nil {
		t.Fatalf("expected passcode to verify, got %v", err)
	}

	if err := EnsureOwner(gdb, "rotated"); err != nil {
		t.Fatalf("EnsureOwner rotate failed: %v", err)
	}
	if _, err := VerifyOwner(gdb, "secret"); !errors.Is(err, ErrPasscodeMismatch) {
		t.Fatalf("expected old passcode to be rejected, got %v", err)
	}
	var count int64
	if err := gdb.Model(&Owner{}).Count(&count).Error; err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one owner row, got %d", count)
	}
}

func TestEnsureOwnerEmptyPasscodeOpensGate(t *testing.T) {
	gdb := setupOwnerTestDB(t)

	if err := EnsureOwner(gdb, "secret"); err != nil {
		t.Fatalf("EnsureOwner failed: %v", err)
	}
	if err := EnsureOwner(gdb, "   "); err != nil {
		t.Fatalf("EnsureOwner with empty passcode failed: %v", err)
	}

	enabled, err := HasOwner(gdb)
	if err != nil {
		t.Fatalf("HasOwner failed: %v", err)
	}
	if enabled {
		t.Fatalf("expected access gate to be disabled after passcode was unset")
	}
	if _, err := VerifyOwner(gdb, "secret"); !errors.Is(err, ErrPasscodeMismatch) {
		t.Fatalf("expected old passcode to stop working, got %v", err)
	}

	var remaining int64
	if err := gdb.Unscoped().Model(&Owner{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected owner rows to be removed, got %d", remaining)
	}
}
