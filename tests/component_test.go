package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tixledger/db/registry"
	"tixledger/entity"
	"tixledger/gateway"
	"tixledger/pubsub"
	"tixledger/service"
)

var (
	httpAddress = ":8080"
	baseURL     = "http://localhost:8080"
)

func TestComponent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).Connect.func1"))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	dbconn, err := sqlx.Open("postgres", postgresURL)
	if err != nil {
		panic(err)
	}
	defer dbconn.Close()

	redisClient := pubsub.NewRedisClient(redisURL)
	defer redisClient.Close()

	kycClient := &gateway.KycMock{}
	authority := uuid.NewString()

	done := make(chan struct{})
	go func() {
		<-done
		e := syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		require.NoError(t, e)
	}()

	finished := make(chan struct{})
	go func() {
		svc := service.New(
			httpAddress,
			dbconn,
			redisClient,
			kycClient,
			registry.DefaultLimits(),
			authority,
			time.Hour,
		)
		assert.NoError(t, svc.Run(ctx))
		close(finished)
	}()

	defer func() {
		close(done)
		<-finished
	}()

	waitForHttpServer(t)

	owner := uuid.NewString()
	buyer := uuid.NewString()

	doJSON(t, http.MethodPost, "/registry", map[string]any{
		"authority": authority,
	}, http.StatusCreated, nil)

	doJSON(t, http.MethodPost, "/ticket-manager", map[string]any{
		"authority": authority,
	}, http.StatusCreated, nil)

	var info entity.OrganizationInfo
	doJSON(t, http.MethodPost, "/registry/organizations", map[string]any{
		"owner":       owner,
		"name":        "Blue Note",
		"description": "jazz club",
	}, http.StatusCreated, &info)
	assert.True(t, info.KycVerified)
	assert.Contains(t, kycClient.Verified, owner)

	doJSON(t, http.MethodPost, "/organizations/"+owner, map[string]any{
		"name":         "Blue Note",
		"metadata_uri": "https://example.com/meta.json",
	}, http.StatusCreated, nil)

	start := time.Now().UTC().Add(time.Hour)
	var event entity.Event
	doJSON(t, http.MethodPost, "/organizations/"+owner+"/events", map[string]any{
		"name":         "Night Session",
		"location":     "downstairs",
		"start_time":   start,
		"end_time":     start.Add(2 * time.Hour),
		"price":        100,
		"max_capacity": 5,
	}, http.StatusCreated, &event)
	require.NotEmpty(t, event.ID)

	doJSON(t, http.MethodPost, "/accounts/"+buyer+"/deposit", map[string]any{
		"amount": 150,
	}, http.StatusOK, nil)

	var ticket struct {
		TicketID string `json:"ticket_id"`
		Valid    bool   `json:"valid"`
	}
	doJSON(t, http.MethodPost, "/tickets", map[string]any{
		"buyer":    buyer,
		"event_id": event.ID,
		"amount":   100,
	}, http.StatusCreated, &ticket)
	require.NotEmpty(t, ticket.TicketID)
	assert.True(t, ticket.Valid)

	assertBalance(t, event.ID, 100)
	assertBalance(t, buyer, 50)

	// the sales read model catches up through the outbox and the broker
	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			var sales entity.EventSales
			code := getJSON("/events/"+event.ID+"/sales", &sales)
			if !assert.Equal(t, http.StatusOK, code) {
				return
			}

			assert.Equal(t, int64(1), sales.TicketsSold)
			assert.Equal(t, int64(100), sales.Revenue)
		},
		10*time.Second,
		100*time.Millisecond,
	)

	doJSON(t, http.MethodPut, "/ticket-refund/"+ticket.TicketID, map[string]any{
		"authority": authority,
		"event_id":  event.ID,
		"buyer":     buyer,
		"amount":    100,
	}, http.StatusAccepted, nil)

	// refund is processed asynchronously by the command handler
	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			var refunded struct {
				Valid bool `json:"valid"`
			}
			code := getJSON("/tickets/"+ticket.TicketID, &refunded)
			if !assert.Equal(t, http.StatusOK, code) {
				return
			}

			assert.False(t, refunded.Valid)
		},
		10*time.Second,
		100*time.Millisecond,
	)

	assertBalance(t, buyer, 150)
	assertBalance(t, event.ID, 0)

	var updated entity.Event
	code := getJSON("/events/"+event.ID, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(0), updated.TicketsMinted)
	assert.Equal(t, int64(5), updated.RemainingTickets)
}

func assertBalance(t *testing.T, accountID string, expected int64) {
	t.Helper()

	var account struct {
		Balance int64 `json:"balance"`
	}
	code := getJSON("/accounts/"+accountID, &account)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, expected, account.Balance)
}

func doJSON(t *testing.T, method, path string, body any, expectedCode int, out any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, baseURL+path, bytes.NewBuffer(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedCode, resp.StatusCode, "unexpected status for %s %s: %s", method, path, string(respBody))

	if out != nil {
		require.NoError(t, json.Unmarshal(respBody, out))
	}
}

func getJSON(path string, out any) int {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode
	}

	return resp.StatusCode
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(fmt.Sprintf("%s/health", baseURL))
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode) {
				return
			}
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
