package testinfra

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"permflow/authority"
	"permflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSession build a session for user uid with given perms
func BuildSession(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Context:  context.Background(),
		Token:    "token-" + uid.String(),
		Identity: session.Identity{ID: uid, Name: "user" + uid.String()},
		Perms:    authority.Permissions(perms),
	}
}

// ExecuteRequest serve req with router, return status code, body and the raw response
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}
	return resp.StatusCode, string(body), resp
}

// InjectSession a middleware that puts the given session into the gin context, stands in for the auth filter
func InjectSession(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.InjectSessionIntoGinContext(c, s)
		c.Next()
	}
}
