package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"
	"thekua/internal/usecase"
)

func TestAdminAuditUsecase_ListsWhatAdminsDid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "P1", "Classic Thekua", "100", 10)

	require.NoError(t, env.inventory.SetStock(ctx, 7, "P1", usecase.SetStockInput{Stock: 12, Reason: "restock"}))
	require.NoError(t, env.inventory.SetStock(ctx, 8, "P1", usecase.SetStockInput{Stock: 9, Reason: "damaged"}))

	audit := env.audit

	out, err := audit.List(ctx, repo.AuditLogFilter{Page: 1, Limit: 10, ResourceType: model.AuditResourceProduct, ResourceID: "P1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
	require.Len(t, out.Items, 2)
	assert.Equal(t, int64(8), out.Items[0].ActorUserID)
	assert.JSONEq(t, `{"stock":12}`, out.Items[0].BeforeJSON)

	out, err = audit.List(ctx, repo.AuditLogFilter{Page: 1, Limit: 10, ActorUserID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)

	history, err := env.inventory.History(ctx, "P1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(9), history.Stock)
	require.Len(t, history.Adjustments, 2)
	assert.Equal(t, int64(-3), history.Adjustments[0].Delta)
	assert.Equal(t, int64(2), history.Adjustments[1].Delta)
}

func TestAdminAuditUsecase_Validation(t *testing.T) {
	env := newTestEnv(t)
	audit := env.audit
	from := testNow
	to := testNow.Add(-time.Hour)

	cases := map[string]repo.AuditLogFilter{
		"page":          {Page: 0, Limit: 10},
		"limit":         {Page: 1, Limit: 500},
		"action":        {Page: 1, Limit: 10, Action: "NOPE"},
		"resource type": {Page: 1, Limit: 10, ResourceType: "user"},
		"range":         {Page: 1, Limit: 10, From: &from, To: &to},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := audit.List(context.Background(), f)
			requireHTTPStatus(t, err, http.StatusBadRequest)
		})
	}

	_, err := env.inventory.History(context.Background(), "missing", 10)
	requireHTTPStatus(t, err, http.StatusNotFound)
}
