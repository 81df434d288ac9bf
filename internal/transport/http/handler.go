package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/repo"
)

func RegisterHandlers(r *gin.Engine, rep repo.RepositoryInterface) {
	v1 := r.Group("/v1")
	{
		v1.GET("/tokens", tokensHandler(rep))
		v1.GET("/balances/:account", accountBalancesHandler(rep))
		v1.GET("/balances/:account/:token", balanceHandler(rep))
		v1.GET("/balances/:account/:token/history", historyHandler(rep))
	}
	r.GET("/healthz", healthHandler(rep))
}

func tokensHandler(rep repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := rep.Tokens(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

func accountBalancesHandler(rep repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		balances, err := rep.AccountBalances(c, c.Param("account"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, balances)
	}
}

// resolveToken maps the path token name to its row.
func resolveToken(c *gin.Context, rep repo.RepositoryInterface) (*model.Token, bool) {
	name := c.Param("token")
	tokens, err := rep.TokensByName(c, rep.DB(c), []string{name})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	t, ok := tokens[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown token"})
		return nil, false
	}
	return &t, true
}

func balanceHandler(rep repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.Param("account")
		tokenName := c.Param("token")
		if bal, err := rep.GetCachedBalance(c, account, tokenName); err == nil {
			c.JSON(http.StatusOK, gin.H{"account": account, "token": tokenName, "amount": bal})
			return
		}
		token, ok := resolveToken(c, rep)
		if !ok {
			return
		}
		b, err := rep.GetBalance(c, account, token.ID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no balance"})
			return
		}
		_ = rep.CacheBalance(c, account, tokenName, b.Amount)
		c.JSON(http.StatusOK, gin.H{"account": account, "token": tokenName, "amount": b.Amount})
	}
}

func historyHandler(rep repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := resolveToken(c, rep)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		snaps, err := rep.SnapshotHistory(c, c.Param("account"), token.ID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snaps)
	}
}

func healthHandler(rep repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		var one int
		if err := rep.DB(c).Raw("SELECT 1").Scan(&one).Error; err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
