package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// OperatorSessionKey returns the cache key for an operator's active session.
func (r *CacheKeyStruct) OperatorSessionKey(userID string) string {
	return fmt.Sprintf("login:operator:%s", userID)
}

var CacheKey = NewCacheKeyStruct()
