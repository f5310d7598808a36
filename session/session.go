package session

import (
	"context"
	"permflow/authority"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Session struct {
	Context context.Context `json:"-"`

	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`

	SigningTime time.Time `json:"-"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

func (s *Session) Clone() Session {
	c := *s
	if s.Perms != nil {
		c.Perms = append(authority.Permissions{}, s.Perms...)
	}
	return c
}

// TraceContext returns the request context carried by the session, or background context
func (s *Session) TraceContext() context.Context {
	if s == nil || s.Context == nil {
		return context.Background()
	}
	return s.Context
}
