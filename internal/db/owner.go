package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Owner 是本地唯一的使用者凭据，只用于开启访问口令
type Owner struct {
	gorm.Model
	PasscodeHash string `gorm:"not null"`
}

// ErrPasscodeMismatch 表示口令校验失败
var ErrPasscodeMismatch = errors.New("passcode mismatch")

// EnsureOwner 写入或更新唯一的口令哈希；口令为空时删除已有凭据，接口恢复开放。
func EnsureOwner(gdb *gorm.DB, passcode string) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	trimmed := strings.TrimSpace(passcode)
	if trimmed == "" {
		return gdb.Unscoped().Where("1 = 1").Delete(&Owner{}).Error
	}

	var existing Owner
	err := gdb.Order("id ASC").First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err == nil && bcrypt.CompareHashAndPassword([]byte(existing.PasscodeHash), []byte(trimmed)) == nil {
		return nil
	}

	hashed, hashErr := bcrypt.GenerateFromPassword([]byte(trimmed), bcrypt.DefaultCost)
	if hashErr != nil {
		return hashErr
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gdb.Create(&Owner{PasscodeHash: string(hashed)}).Error
	}
	return gdb.Model(&existing).Update("passcode_hash", string(hashed)).Error
}

// VerifyOwner 校验口令，未设置口令时返回 ErrPasscodeMismatch
func VerifyOwner(gdb *gorm.DB, passcode string) (*Owner, error) {
	var owner Owner
	if err := gdb.Order("id ASC").First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPasscodeMismatch
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasscodeHash), []byte(strings.TrimSpace(passcode))); err != nil {
		return nil, ErrPasscodeMismatch
	}
	return &owner, nil
}

// HasOwner 判断是否启用了访问口令
func HasOwner(gdb *gorm.DB) (bool, error) {
	var count int64
	if err := gdb.Model(&Owner{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
