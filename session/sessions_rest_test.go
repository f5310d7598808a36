package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"permflow/bizerror"
	"permflow/session"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestSessionsRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	session.RegisterSessionsRestAPI(router, "issuer-secret")
	session.RegisterSessionRestAPI(router, session.SimpleAuthFilter())

	issue := func(secret, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, session.PathSessions, strings.NewReader(body))
		if secret != "" {
			req.Header.Set(session.HeaderIssuerSecret, secret)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("only the trusted issuer opens sessions", func(t *testing.T) {
		body := `{"identity":{"id":"300","name":"user300"},"perms":["system:admin"]}`
		Expect(issue("", body).Code).To(Equal(http.StatusUnauthorized))
		Expect(issue("guess", body).Code).To(Equal(http.StatusForbidden))

		w := issue("issuer-secret", body)
		Expect(w.Code).To(Equal(http.StatusCreated))
		issued := session.Session{}
		Expect(json.Unmarshal(w.Body.Bytes(), &issued)).To(BeNil())
		Expect(issued.Token).ToNot(BeEmpty())
		Expect(issued.Perms.IsSystemAdmin()).To(BeTrue())
		Expect(w.Header().Get("Set-Cookie")).To(ContainSubstring(session.KeySecToken + "=" + issued.Token))

		req := httptest.NewRequest(http.MethodGet, session.PathSession, nil)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"name":"user300"`))

		req = httptest.NewRequest(http.MethodDelete, session.PathSessions+"/"+issued.Token, nil)
		req.Header.Set(session.HeaderIssuerSecret, "issuer-secret")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusNoContent))

		req = httptest.NewRequest(http.MethodGet, session.PathSession, nil)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	t.Run("keeps the token chosen by the issuer and requires an identity", func(t *testing.T) {
		w := issue("issuer-secret", `{"token":"tk-301","identity":{"id":"301"}}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Body.String()).To(ContainSubstring(`"token":"tk-301"`))
		session.Revoke("tk-301")

		w = issue("issuer-secret", `{"identity":{"name":"nobody"}}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	t.Run("issuing is disabled without secret", func(t *testing.T) {
		disabled := gin.New()
		disabled.Use(bizerror.ErrorHandling())
		session.RegisterSessionsRestAPI(disabled, "")
		req := httptest.NewRequest(http.MethodPost, session.PathSessions, strings.NewReader(`{"identity":{"id":"1"}}`))
		req.Header.Set(session.HeaderIssuerSecret, "anything")
		w := httptest.NewRecorder()
		disabled.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
}
