package session

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"permflow/authority"
	"permflow/bizerror"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	PathSessions = "/v1/sessions"
)

const HeaderIssuerSecret = "X-Session-Issuer-Secret"

// SessionIssuance a session handed over by the authentication service after it authenticated the user
type SessionIssuance struct {
	Token    string                `json:"token" binding:"lte=128"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`
}

// RegisterSessionsRestAPI lets the trusted issuer open and close sessions. Callers prove they are the issuer
// with the shared secret in the X-Session-Issuer-Secret header, an empty secret disables issuing.
func RegisterSessionsRestAPI(r *gin.Engine, issuerSecret string) {
	if issuerSecret == "" {
		logrus.Warn("session issuer secret is not configured, sessions can not be issued")
	}
	g := r.Group(PathSessions, TrustedIssuer(issuerSecret))
	g.POST("", handleIssueSession)
	g.DELETE("/:token", handleCloseSession)
}

func TrustedIssuer(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(HeaderIssuerSecret)
		if secret == "" || presented == "" {
			panic(bizerror.ErrUnauthenticated)
		}
		if subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) != 1 {
			panic(bizerror.ErrForbidden)
		}
		c.Next()
	}
}

func handleIssueSession(c *gin.Context) {
	issuance := SessionIssuance{}
	if err := c.ShouldBindBodyWith(&issuance, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if issuance.Identity.ID == 0 {
		panic(&bizerror.ErrBadParam{Cause: errors.New("identity.id is required")})
	}
	token := issuance.Token
	if token == "" {
		token = uuid.New().String()
	}

	s := Session{Token: token, Identity: issuance.Identity, Perms: issuance.Perms}
	Register(&s)
	logrus.WithFields(logrus.Fields{"userId": s.Identity.ID}).Info("session issued")

	c.SetCookie(KeySecToken, token, int(TokenExpiration/time.Second), "/", "", false, true)
	c.JSON(http.StatusCreated, &s)
}

func handleCloseSession(c *gin.Context) {
	Revoke(c.Param("token"))
	c.AbortWithStatus(http.StatusNoContent)
}
