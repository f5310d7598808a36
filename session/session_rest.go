package session

import (
	"net/http"
	"permflow/bizerror"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

var (
	PathSession = "/v1/session"
)

// RegisterSessionRestAPI exposes the current session. Sessions are issued by the authentication
// service through Register, this api only reads and revokes them.
func RegisterSessionRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathSession, middleWares...)
	g.GET("", handleDetailSession)
	g.DELETE("", handleRevokeSession)
}

func handleDetailSession(c *gin.Context) {
	sec := ExtractSessionFromGinContext(c)
	ttl := TokenExpiration - time.Since(sec.SigningTime)
	if sec.Token == "" || ttl <= 0 {
		panic(bizerror.ErrUnauthenticated)
	}
	c.JSON(http.StatusOK, sec)
}

func handleRevokeSession(c *gin.Context) {
	sec := ExtractSessionFromGinContext(c)
	if sec.Token != "" {
		Revoke(sec.Token)
	}
	c.SetCookie(KeySecToken, "", -1, "/", "", false, true)
	c.AbortWithStatus(http.StatusNoContent)
}

// Refresh re-arms the expiration of a known token
func Refresh(token string) bool {
	v, found := TokenCache.Get(token)
	if !found {
		return false
	}
	s, ok := v.(*Session)
	if !ok {
		return false
	}
	s.SigningTime = time.Now()
	TokenCache.Set(token, s, cache.DefaultExpiration)
	return true
}
