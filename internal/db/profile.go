package db

// UserProfile 是本地唯一用户的成长档案
// XP 只会因撤销打卡而减少，且不低于 0；Level 始终由 XP 和等级阈值表推导
// Coins 预留给后续商店功能
type UserProfile struct {
	Name  string `json:"name"`
	XP    int    `json:"xp"`
	Level int    `json:"level"`
	Coins int    `json:"coins"`
}

// DefaultProfile 返回初始档案
func DefaultProfile() UserProfile {
	return UserProfile{Name: "User", XP: 0, Level: 1}
}
