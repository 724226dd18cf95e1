package parse

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/testutil"
)

func newClient(t *testing.T, ps *testutil.ParseServer, opts ...Option) *Client {
	t.Helper()
	c, err := New(ps.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Parse(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	ps.Parser.On("x = seed", testutil.Set("seed"), testutil.Get("x"), testutil.Eat("log"))
	c := newClient(t, ps)

	resp, err := c.Parse(context.Background(), "x = seed")
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, ir.Schema{
		{Kind: ir.KindSet, Name: "seed"},
		{Kind: ir.KindGet, Name: "x"},
		{Kind: ir.KindEat, Name: "log"},
	}, resp.Order)

	reqs := ps.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	_, err = uuid.Parse(reqs[0].Header.Get(RequestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, []string{"x = seed"}, ps.Parser.Calls())
}

func TestClient_Rejection(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	ps.Parser.Reject("x =", "unexpected end of input")
	c := newClient(t, ps)

	resp, err := c.Parse(context.Background(), "x =")
	require.NoError(t, err)
	assert.Equal(t, []string{"unexpected end of input"}, resp.Error)
	assert.NotNil(t, resp.Order)
}

func TestClient_CustomEndpoint(t *testing.T) {
	ps := testutil.NewParseServer(t, "/custom")
	c := newClient(t, ps, WithEndpoint("custom"))
	assert.Equal(t, ps.URL+"/custom", c.URL())

	_, err := c.Parse(context.Background(), "q")
	assert.NoError(t, err)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	ps.FailWith(http.StatusBadGateway)
	c := newClient(t, ps)

	_, err := c.Parse(context.Background(), "q")
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.True(t, IsTransportError(err))
}

func TestClient_ContractViolation(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	ps.Respond(`{"order": [["set", "a"]]}`)
	c := newClient(t, ps)

	_, err := c.Parse(context.Background(), "q")
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, ErrContract)
}

func TestClient_Unreachable(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	url := ps.URL
	ps.Close()

	c, err := New(url, WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.Parse(context.Background(), "q")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
}

func TestClient_CallerContextEnds(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	ps.Parser.Hold = make(chan struct{})
	defer close(ps.Parser.Hold)
	c := newClient(t, ps)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Parse(ctx, "q")
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_IdenticalQueriesShareRequest(t *testing.T) {
	ps := testutil.NewParseServer(t, DefaultEndpoint)
	ps.Parser.On("q", testutil.Set("a"))
	ps.Parser.Hold = make(chan struct{})
	c := newClient(t, ps)

	var wg sync.WaitGroup
	results := make([]*ir.ParseResponse, 2)
	errs := make([]error, 2)
	call := func(i int) {
		defer wg.Done()
		results[i], errs[i] = c.Parse(context.Background(), "q")
	}

	wg.Add(1)
	go call(0)
	require.Eventually(t, func() bool { return len(ps.Requests()) == 1 }, 5*time.Second, 5*time.Millisecond)
	wg.Add(1)
	go call(1)
	// Give the second caller time to join the in-flight request.
	time.Sleep(100 * time.Millisecond)
	close(ps.Parser.Hold)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, ps.Requests(), 1)
	assert.Equal(t, results[0], results[1])

	// Callers get independent copies.
	results[0].Order[0].Name = "changed"
	assert.Equal(t, "a", results[1].Order[0].Name)
}
