package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/mentorly/sessionmeter/internal/clock"
	"github.com/mentorly/sessionmeter/internal/config"
	conversationdomain "github.com/mentorly/sessionmeter/internal/conversation/domain"
	conversationrepository "github.com/mentorly/sessionmeter/internal/conversation/repository"
	conversationservice "github.com/mentorly/sessionmeter/internal/conversation/service"
	subscriptiondomain "github.com/mentorly/sessionmeter/internal/subscription/domain"
	subscriptionrepository "github.com/mentorly/sessionmeter/internal/subscription/repository"
	subscriptionservice "github.com/mentorly/sessionmeter/internal/subscription/service"
	usagedomain "github.com/mentorly/sessionmeter/internal/usage/domain"
	usagerepository "github.com/mentorly/sessionmeter/internal/usage/repository"
	usageservice "github.com/mentorly/sessionmeter/internal/usage/service"
	"github.com/mentorly/sessionmeter/internal/webhook/authenticator"
	webhookdomain "github.com/mentorly/sessionmeter/internal/webhook/domain"
	webhookservice "github.com/mentorly/sessionmeter/internal/webhook/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	fake   *clock.FakeClock
	db     *gorm.DB
	node   *snowflake.Node
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&conversationdomain.Conversation{},
		&usagedomain.LedgerEntry{},
		&usagedomain.ConversationUsageDetail{},
		&subscriptiondomain.Subscription{},
		&webhookdomain.WebhookEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		WebhookAllowedDomains: []string{"tavus.io", "webhook.tavus.io", "api.tavus.io", "tavusapi.com", "tavus.daily.co"},
	}

	convSvc := conversationservice.NewService(conversationservice.ServiceParam{
		Log:   log,
		Clock: fake,
		GenID: node,
		Repo:  conversationrepository.NewRepository(db),
	})
	subSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		Log:   log,
		Clock: fake,
		Repo:  subscriptionrepository.NewRepository(db),
	})
	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		Log:    log,
		Clock:  fake,
		GenID:  node,
		Repo:   usagerepository.NewRepository(db),
		SubSvc: subSvc,
		Tiers:  &config.TiersHolder{},
	})
	webhookSvc := webhookservice.NewService(webhookservice.Params{
		DB:       db,
		Log:      log,
		Clock:    fake,
		ConvSvc:  convSvc,
		UsageSvc: usageSvc,
	})

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:     router,
		cfg:        cfg,
		log:        log,
		convSvc:    convSvc,
		usageSvc:   usageSvc,
		webhookSvc: webhookSvc,
		authn:      authenticator.New(cfg, log),
	}
	srv.registerAPIRoutes()

	return testServer{router: router, fake: fake, db: db, node: node}
}

func (ts testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func (ts testServer) provision(t *testing.T, userID snowflake.ID, providerID string) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/conversations", map[string]string{
		"user_id":                  userID.String(),
		"provider_conversation_id": providerID,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
}

func (ts testServer) webhook(t *testing.T, eventType, providerID string, properties map[string]any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/api/webhooks/tavus", map[string]any{
		"conversation_id": providerID,
		"event_type":      eventType,
		"message_type":    "system",
		"timestamp":       ts.fake.Now().Format(time.RFC3339),
		"properties":      properties,
	}, headers)
}

func TestWebhookLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-1")

	resp := ts.webhook(t, webhookdomain.EventReplicaJoined, "conv-http-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"success":true}`, resp.Body.String())

	ts.fake.Advance(125 * time.Second)

	resp = ts.webhook(t, webhookdomain.EventShutdown, "conv-http-1", map[string]any{
		"reason": "participant_left",
	}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var conv conversationdomain.Conversation
	require.NoError(t, ts.db.Where("provider_conversation_id = ?", "conv-http-1").First(&conv).Error)
	assert.Equal(t, conversationdomain.StatusCompleted, conv.Status)
	assert.Equal(t, int64(3), conv.DurationMinutes)

	summaryResp := ts.do(t, http.MethodGet, fmt.Sprintf("/api/usage/summary?user_id=%s", userID), nil, nil)
	require.Equal(t, http.StatusOK, summaryResp.Code)

	var summary usagedomain.Summary
	require.NoError(t, json.Unmarshal(summaryResp.Body.Bytes(), &summary))
	assert.Equal(t, int64(3), summary.MinutesUsed)
	assert.Equal(t, int64(1), summary.SessionsUsed)
	assert.Equal(t, "free", summary.Tier)
}

func TestWebhookRejectsUntrustedOrigin(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-2")

	resp := ts.webhook(t, webhookdomain.EventReplicaJoined, "conv-http-2", nil, map[string]string{
		"Origin": "https://malicious.com",
	})
	require.Equal(t, http.StatusForbidden, resp.Code)

	var body webhookdomain.Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)

	var conv conversationdomain.Conversation
	require.NoError(t, ts.db.Where("provider_conversation_id = ?", "conv-http-2").First(&conv).Error)
	assert.Equal(t, conversationdomain.StatusPending, conv.Status)

	// The turned-away delivery still lands in the audit log.
	var event webhookdomain.WebhookEvent
	require.NoError(t, ts.db.Where("provider_conversation_id = ?", "conv-http-2").First(&event).Error)
	assert.Equal(t, webhookdomain.OutcomeRejected, event.Outcome)
}

func TestWebhookOversizedPayloadRejected(t *testing.T) {
	ts := newTestServer(t)

	body := bytes.NewReader(bytes.Repeat([]byte("a"), 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/tavus", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)

	var result webhookdomain.Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.False(t, result.Success)
}

func TestWebhookAcceptsTrustedOrigin(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-3")

	resp := ts.webhook(t, webhookdomain.EventReplicaJoined, "conv-http-3", nil, map[string]string{
		"Origin": "https://tavus.io",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestWebhookUnknownConversationReturns404(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.webhook(t, webhookdomain.EventReplicaJoined, "never-created", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	var body webhookdomain.Result
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestWebhookUnrecognizedEventReturns200(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-4")

	resp := ts.webhook(t, "system.something_new", "conv-http-4", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"success":true}`, resp.Body.String())
}

func TestCreateConversationConflict(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-5")

	resp := ts.do(t, http.MethodPost, "/api/conversations", map[string]string{
		"user_id":                  userID.String(),
		"provider_conversation_id": "conv-http-5",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetConversation(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-6")

	var conv conversationdomain.Conversation
	require.NoError(t, ts.db.Where("provider_conversation_id = ?", "conv-http-6").First(&conv).Error)

	resp := ts.do(t, http.MethodGet, "/api/conversations/"+conv.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	missing := ts.do(t, http.MethodGet, "/api/conversations/123456789", nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetConversationIncludesUsageDetail(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()
	ts.provision(t, userID, "conv-http-7")

	var conv conversationdomain.Conversation
	require.NoError(t, ts.db.Where("provider_conversation_id = ?", "conv-http-7").First(&conv).Error)

	// Before any billable start the usage block is omitted.
	resp := ts.do(t, http.MethodGet, "/api/conversations/"+conv.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var before map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &before))
	assert.NotContains(t, before, "usage")

	require.Equal(t, http.StatusOK, ts.webhook(t, webhookdomain.EventReplicaJoined, "conv-http-7", nil, nil).Code)
	ts.fake.Advance(90 * time.Second)
	require.Equal(t, http.StatusOK, ts.webhook(t, webhookdomain.EventShutdown, "conv-http-7", map[string]any{
		"reason": "participant_left",
	}, nil).Code)

	resp = ts.do(t, http.MethodGet, "/api/conversations/"+conv.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var after struct {
		Status conversationdomain.Status            `json:"status"`
		Usage  *usagedomain.ConversationUsageDetail `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &after))
	assert.Equal(t, conversationdomain.StatusCompleted, after.Status)
	require.NotNil(t, after.Usage)
	assert.Equal(t, usagedomain.CompletionCompleted, after.Usage.CompletionStatus)
}

func TestUsageSummaryValidatesUserID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/usage/summary", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/usage/summary?user_id=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUsageSummaryUsesActiveSubscription(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.node.Generate()

	now := ts.fake.Now()
	sub := subscriptiondomain.Subscription{
		ID:                 ts.node.Generate(),
		UserID:             userID,
		Tier:               "pro",
		PriceID:            "price_pro_monthly",
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, 0, -9),
		CurrentPeriodEnd:   now.AddDate(0, 0, 21),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, ts.db.Create(&sub).Error)

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/api/usage/summary?user_id=%s", userID), nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var summary usagedomain.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Equal(t, "pro", summary.Tier)
	assert.Equal(t, int64(300), summary.MinutesIncluded)
}
