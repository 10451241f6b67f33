package db

import "gorm.io/gorm"

// StateBlob 以键值形式保存整份 JSON 快照，每次变更整体重写。
type StateBlob struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (StateBlob) TableName() string {
	return "state_blobs"
}

const (
	// BlobKeyHabits 保存习惯列表
	BlobKeyHabits = "habits"
	// BlobKeyLogs 保存打卡记录
	BlobKeyLogs = "logs"
	// BlobKeyUser 保存用户档案
	BlobKeyUser = "user"
	// BlobKeyDailyQuote 缓存当日名言
	BlobKeyDailyQuote = "dailyQuoteData"
)
