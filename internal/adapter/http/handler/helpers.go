package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// caller returns the authenticated subject set by JWTAuth.
func caller(c *gin.Context) (string, error) {
	sub := c.GetString(middleware.CtxSubject)
	if sub == "" {
		return "", apperror.ErrInvalidToken()
	}
	return sub, nil
}

// callerWalletRole picks the wallet the caller means: the requested role, or
// the role in their token when none was given.
func callerWalletRole(c *gin.Context, requested string) (domain.WalletRole, error) {
	role := domain.WalletRole(requested)
	if role == "" {
		role = domain.WalletRole(c.GetString(middleware.CtxRole))
	}
	if !role.Valid() {
		return "", apperror.Validation("role must be SELLER or COURIER")
	}
	return role, nil
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(name + " must be a UUID")
	}
	return id, nil
}

func pageOf(q dto.PageQuery) (int, int) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}
