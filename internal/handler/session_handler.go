package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/db"
)

const sessionOwnerKey = "owner_id"

type sessionRequest struct {
	Passcode string `json:"passcode"`
}

// CreateSession 校验访问口令并写入会话
func (a *API) CreateSession(c *gin.Context) {
	var payload sessionRequest
	if !bindJSON(c, &payload, a.msg(c, "Passcode is required", "请输入访问口令")) {
		return
	}

	owner, err := db.VerifyOwner(a.db, payload.Passcode)
	if err != nil {
		if errors.Is(err, db.ErrPasscodeMismatch) {
			respondError(c, http.StatusUnauthorized, a.msg(c, "Incorrect passcode", "口令错误"))
			return
		}
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to verify passcode", "口令校验失败"))
		return
	}

	session := sessions.Default(c)
	session.Set(sessionOwnerKey, owner.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to save session", "会话保存失败"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// DeleteSession 清除会话
func (a *API) DeleteSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// AuthRequired 仅在设置了访问口令时要求登录，未设置时本地单用户直接放行
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		enabled, err := db.HasOwner(a.db)
		if err != nil {
			respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to check access", "访问校验失败"))
			c.Abort()
			return
		}
		if !enabled {
			c.Next()
			return
		}

		session := sessions.Default(c)
		if session.Get(sessionOwnerKey) == nil {
			respondError(c, http.StatusUnauthorized, a.msg(c, "Login required", "请先输入访问口令"))
			c.Abort()
			return
		}
		c.Next()
	}
}
