package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http/httptest"
	"testing"

	"hodlpool/core"
	"hodlpool/crypto"
	"hodlpool/native/hodl"
	"hodlpool/state"
	"hodlpool/storage"
)

const testToken = "test-token"

type testEnv struct {
	node   *core.Node
	server *Server
	now    uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager, err := state.NewManager(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var vault [20]byte
	vault[0] = 0xaa
	node, err := core.NewNode(manager, hodl.Params{MinInitialPenaltyPercent: 1, MinCommitPeriod: 10, MaxCommitPeriod: 1 << 32}, vault, logger)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	env := &testEnv{node: node, server: NewServer(node, testToken)}
	node.Engine().SetNowFunc(func() uint64 { return env.now })
	return env
}

func testBech32(t *testing.T, suffix byte) string {
	t.Helper()
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.HodlPrefix, raw).String()
}

func (env *testEnv) fund(t *testing.T, suffix byte, amount int64) {
	t.Helper()
	var owner [20]byte
	owner[len(owner)-1] = suffix
	if err := env.node.FundAccount("HODL", owner, big.NewInt(amount)); err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func (env *testEnv) call(t *testing.T, method string, params interface{}, token string) (json.RawMessage, *RPCError) {
	t.Helper()
	var raw []json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(&RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.handle(rec, req)

	var payload struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload.Result, payload.Error
}

func TestDepositWithdrawFlow(t *testing.T) {
	env := newTestEnv(t)
	owner := testBech32(t, 1)
	env.fund(t, 1, 1000)

	result, rpcErr := env.call(t, "hodl_deposit", hodlDepositParams{
		Owner:                 owner,
		Asset:                 "HODL",
		Amount:                "1000",
		InitialPenaltyPercent: 100,
		CommitPeriod:          10,
	}, testToken)
	if rpcErr != nil {
		t.Fatalf("deposit rpc error: %+v", rpcErr)
	}
	var dep hodlDepositResult
	if err := json.Unmarshal(result, &dep); err != nil {
		t.Fatalf("decode deposit: %v", err)
	}
	if dep.Balance != "1000" || dep.CommitPoints != "5000" {
		t.Fatalf("unexpected deposit result: %+v", dep)
	}

	env.now = 5
	result, rpcErr = env.call(t, "hodl_withdrawWithPenalty", hodlWithdrawParams{
		Owner:     owner,
		DepositID: dep.DepositID,
	}, testToken)
	if rpcErr != nil {
		t.Fatalf("withdraw rpc error: %+v", rpcErr)
	}
	var receipt hodlWithdrawResult
	if err := json.Unmarshal(result, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Penalty != "500" || receipt.Payout != "500" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	result, rpcErr = env.call(t, "hodl_getPool", hodlPoolParams{Asset: "HODL"}, "")
	if rpcErr != nil {
		t.Fatalf("pool rpc error: %+v", rpcErr)
	}
	var pool hodlPoolResult
	if err := json.Unmarshal(result, &pool); err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	if pool.HoldBonusesSum != "250" || pool.CommitBonusesSum != "250" {
		t.Fatalf("unexpected pool: %+v", pool)
	}

	result, rpcErr = env.call(t, "hodl_getBalance", hodlBalanceParams{Owner: owner, Asset: "HODL"}, "")
	if rpcErr != nil {
		t.Fatalf("balance rpc error: %+v", rpcErr)
	}
	var balance hodlBalanceResult
	if err := json.Unmarshal(result, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != "500" {
		t.Fatalf("balance = %s, want 500", balance.Balance)
	}
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	owner := testBech32(t, 1)
	params := hodlDepositParams{Owner: owner, Asset: "HODL", Amount: "10", InitialPenaltyPercent: 100, CommitPeriod: 10}

	_, rpcErr := env.call(t, "hodl_deposit", params, "")
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("missing token: err = %+v, want code %d", rpcErr, codeUnauthorized)
	}
	_, rpcErr = env.call(t, "hodl_deposit", params, "wrong-token")
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("wrong token: err = %+v, want code %d", rpcErr, codeUnauthorized)
	}
}

func TestQueryMethodsAreOpen(t *testing.T) {
	env := newTestEnv(t)
	if _, rpcErr := env.call(t, "hodl_getPool", hodlPoolParams{Asset: "HODL"}, ""); rpcErr != nil {
		t.Fatalf("unauthenticated query failed: %+v", rpcErr)
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	env := newTestEnv(t)
	owner := testBech32(t, 1)

	cases := []struct {
		name   string
		params hodlDepositParams
	}{
		{"bad owner", hodlDepositParams{Owner: "nonsense", Asset: "HODL", Amount: "10", InitialPenaltyPercent: 100, CommitPeriod: 10}},
		{"bad amount", hodlDepositParams{Owner: owner, Asset: "HODL", Amount: "ten", InitialPenaltyPercent: 100, CommitPeriod: 10}},
		{"negative amount", hodlDepositParams{Owner: owner, Asset: "HODL", Amount: "-5", InitialPenaltyPercent: 100, CommitPeriod: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, rpcErr := env.call(t, "hodl_deposit", tc.params, testToken)
			if rpcErr == nil || rpcErr.Code != codeInvalidParams {
				t.Fatalf("err = %+v, want code %d", rpcErr, codeInvalidParams)
			}
		})
	}
}

func TestCommitmentBoundsSurfaceAsInvalidParams(t *testing.T) {
	env := newTestEnv(t)
	owner := testBech32(t, 1)
	env.fund(t, 1, 1000)

	_, rpcErr := env.call(t, "hodl_deposit", hodlDepositParams{
		Owner:                 owner,
		Asset:                 "HODL",
		Amount:                "100",
		InitialPenaltyPercent: 101,
		CommitPeriod:          10,
	}, testToken)
	if rpcErr == nil || rpcErr.Code != codeInvalidParams {
		t.Fatalf("err = %+v, want code %d", rpcErr, codeInvalidParams)
	}
}

func TestUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	_, rpcErr := env.call(t, "hodl_fly", nil, "")
	if rpcErr == nil || rpcErr.Code != codeMethodNotFound {
		t.Fatalf("err = %+v, want code %d", rpcErr, codeMethodNotFound)
	}
}

func TestGetDepositMissing(t *testing.T) {
	env := newTestEnv(t)
	_, rpcErr := env.call(t, "hodl_getDeposit", hodlDepositLookupParams{
		DepositID: "0x" + string(bytes.Repeat([]byte("0"), 64)),
	}, "")
	if rpcErr == nil || rpcErr.Code != codeInvalidParams {
		t.Fatalf("err = %+v, want code %d", rpcErr, codeInvalidParams)
	}
}

func TestListDepositsByOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := testBech32(t, 1)
	env.fund(t, 1, 1000)

	for i := 0; i < 2; i++ {
		_, rpcErr := env.call(t, "hodl_deposit", hodlDepositParams{
			Owner:                 owner,
			Asset:                 "HODL",
			Amount:                "100",
			InitialPenaltyPercent: 100,
			CommitPeriod:          10,
		}, testToken)
		if rpcErr != nil {
			t.Fatalf("deposit %d: %+v", i, rpcErr)
		}
	}

	result, rpcErr := env.call(t, "hodl_listDeposits", hodlOwnerParams{Owner: owner}, "")
	if rpcErr != nil {
		t.Fatalf("list rpc error: %+v", rpcErr)
	}
	var deposits []hodlDepositResult
	if err := json.Unmarshal(result, &deposits); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(deposits) != 2 {
		t.Fatalf("len(deposits) = %d, want 2", len(deposits))
	}
}

func TestTransferDepositOverRPC(t *testing.T) {
	env := newTestEnv(t)
	seller := testBech32(t, 1)
	buyer := testBech32(t, 2)
	env.fund(t, 1, 1000)

	result, rpcErr := env.call(t, "hodl_deposit", hodlDepositParams{
		Owner:                 seller,
		Asset:                 "HODL",
		Amount:                "1000",
		InitialPenaltyPercent: 100,
		CommitPeriod:          10,
	}, testToken)
	if rpcErr != nil {
		t.Fatalf("deposit: %+v", rpcErr)
	}
	var dep hodlDepositResult
	if err := json.Unmarshal(result, &dep); err != nil {
		t.Fatalf("decode deposit: %v", err)
	}

	if _, rpcErr := env.call(t, "hodl_transferDeposit", hodlTransferParams{
		Owner:     seller,
		DepositID: dep.DepositID,
		NewOwner:  buyer,
	}, testToken); rpcErr != nil {
		t.Fatalf("transfer: %+v", rpcErr)
	}

	result, rpcErr = env.call(t, "hodl_getDeposit", hodlDepositLookupParams{DepositID: dep.DepositID}, "")
	if rpcErr != nil {
		t.Fatalf("get after transfer: %+v", rpcErr)
	}
	var after hodlDepositResult
	if err := json.Unmarshal(result, &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.Owner != buyer {
		t.Fatalf("owner = %s, want %s", after.Owner, buyer)
	}

	// The previous owner may no longer withdraw.
	env.now = 10
	_, rpcErr = env.call(t, "hodl_withdraw", hodlWithdrawParams{Owner: seller, DepositID: dep.DepositID}, testToken)
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("seller withdraw: err = %+v, want code %d", rpcErr, codeUnauthorized)
	}
}
