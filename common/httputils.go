package common

import (
	"permflow/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BindingPathID parses the path parameter name as an id, panics with ErrBadParam on malformed ids
func BindingPathID(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}

// BindingQueryIDs parses every value of the query parameter name as an id
func BindingQueryIDs(c *gin.Context, name string) []types.ID {
	var ids []types.ID
	for _, v := range c.QueryArray(name) {
		id, err := types.ParseID(v)
		if err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		ids = append(ids, id)
	}
	return ids
}
