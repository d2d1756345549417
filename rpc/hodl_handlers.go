package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"hodlpool/crypto"
	"hodlpool/native/hodl"
)

type hodlDepositParams struct {
	Owner                 string `json:"owner"`
	Asset                 string `json:"asset"`
	Amount                string `json:"amount"`
	InitialPenaltyPercent uint64 `json:"initialPenaltyPercent"`
	CommitPeriod          uint64 `json:"commitPeriod"`
}

type hodlTopUpParams struct {
	Owner                 string `json:"owner"`
	DepositID             string `json:"depositId"`
	Amount                string `json:"amount"`
	InitialPenaltyPercent uint64 `json:"initialPenaltyPercent"`
	CommitPeriod          uint64 `json:"commitPeriod"`
}

type hodlWithdrawParams struct {
	Owner     string `json:"owner"`
	DepositID string `json:"depositId"`
}

type hodlTransferParams struct {
	Owner     string `json:"owner"`
	DepositID string `json:"depositId"`
	NewOwner  string `json:"newOwner"`
}

type hodlDepositLookupParams struct {
	DepositID string `json:"depositId"`
}

type hodlOwnerParams struct {
	Owner string `json:"owner"`
}

type hodlPoolParams struct {
	Asset string `json:"asset"`
}

type hodlBalanceParams struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

type hodlDepositResult struct {
	DepositID             string `json:"depositId"`
	Owner                 string `json:"owner"`
	Asset                 string `json:"asset"`
	Balance               string `json:"balance"`
	Time                  uint64 `json:"time"`
	InitialPenaltyPercent uint64 `json:"initialPenaltyPercent"`
	CommitPeriod          uint64 `json:"commitPeriod"`
	CurrentPenaltyPercent uint64 `json:"currentPenaltyPercent"`
	CurrentPenalty        string `json:"currentPenalty"`
	TimeLeft              uint64 `json:"timeLeft"`
	HoldPoints            string `json:"holdPoints"`
	CommitPoints          string `json:"commitPoints"`
	HoldBonus             string `json:"holdBonus"`
	CommitBonus           string `json:"commitBonus"`
}

type hodlWithdrawResult struct {
	DepositID   string `json:"depositId"`
	Asset       string `json:"asset"`
	Balance     string `json:"balance"`
	Penalty     string `json:"penalty"`
	HoldBonus   string `json:"holdBonus"`
	CommitBonus string `json:"commitBonus"`
	Payout      string `json:"payout"`
	Sent        string `json:"sent"`
}

type hodlPoolResult struct {
	Asset             string `json:"asset"`
	DepositsSum       string `json:"depositsSum"`
	HoldBonusesSum    string `json:"holdBonusesSum"`
	CommitBonusesSum  string `json:"commitBonusesSum"`
	TotalHoldPoints   string `json:"totalHoldPoints"`
	TotalCommitPoints string `json:"totalCommitPoints"`
}

type hodlBalanceResult struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

func decodeBech32(addr string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Array(), nil
}

func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}

func parseDepositID(raw string) (hodl.DepositID, error) {
	var id hodl.DepositID
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("invalid deposit id: %w", err)
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("deposit id must be %d bytes", len(id))
	}
	copy(id[:], decoded)
	return id, nil
}

func formatDepositID(id hodl.DepositID) string {
	return "0x" + hex.EncodeToString(id[:])
}

func formatOwner(owner [20]byte) string {
	return crypto.MustNewAddress(crypto.HodlPrefix, owner[:]).String()
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func unmarshalSingleParam(w http.ResponseWriter, req *RPCRequest, dst interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func depositInfoResult(info *hodl.DepositInfo) hodlDepositResult {
	return hodlDepositResult{
		DepositID:             formatDepositID(info.ID),
		Owner:                 formatOwner(info.Owner),
		Asset:                 info.Asset,
		Balance:               formatBig(info.Balance),
		Time:                  info.Time,
		InitialPenaltyPercent: info.InitialPenaltyPercent,
		CommitPeriod:          info.CommitPeriod,
		CurrentPenaltyPercent: info.CurrentPenaltyPercent,
		CurrentPenalty:        formatBig(info.CurrentPenalty),
		TimeLeft:              info.TimeLeft,
		HoldPoints:            formatBig(info.HoldPoints),
		CommitPoints:          formatBig(info.CommitPoints),
		HoldBonus:             formatBig(info.HoldBonus),
		CommitBonus:           formatBig(info.CommitBonus),
	}
}

func withdrawResult(receipt *hodl.WithdrawReceipt) hodlWithdrawResult {
	return hodlWithdrawResult{
		DepositID:   formatDepositID(receipt.ID),
		Asset:       receipt.Asset,
		Balance:     formatBig(receipt.Balance),
		Penalty:     formatBig(receipt.Penalty),
		HoldBonus:   formatBig(receipt.HoldBonus),
		CommitBonus: formatBig(receipt.CommitBonus),
		Payout:      formatBig(receipt.Payout),
		Sent:        formatBig(receipt.Sent),
	}
}

func (s *Server) handleHodlDeposit(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlDepositParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	dep, err := s.node.Deposit(owner, strings.TrimSpace(params.Asset), amount, params.InitialPenaltyPercent, params.CommitPeriod)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	info, err := s.node.DepositInfo(dep.ID)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, depositInfoResult(info))
	return "ok"
}

func (s *Server) handleHodlTopUp(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlTopUpParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	id, err := parseDepositID(params.DepositID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	dep, err := s.node.TopUp(owner, id, amount, params.InitialPenaltyPercent, params.CommitPeriod)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	info, err := s.node.DepositInfo(dep.ID)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, depositInfoResult(info))
	return "ok"
}

func (s *Server) handleHodlWithdraw(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlWithdrawParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	id, err := parseDepositID(params.DepositID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	receipt, err := s.node.WithdrawWithBonus(owner, id)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, withdrawResult(receipt))
	return "ok"
}

func (s *Server) handleHodlWithdrawWithPenalty(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlWithdrawParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	id, err := parseDepositID(params.DepositID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	receipt, err := s.node.WithdrawWithPenalty(owner, id)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, withdrawResult(receipt))
	return "ok"
}

func (s *Server) handleHodlTransferDeposit(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlTransferParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	newOwner, err := decodeBech32(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid new owner address", err.Error())
		return "invalid_params"
	}
	id, err := parseDepositID(params.DepositID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.TransferDeposit(owner, id, newOwner); err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, map[string]string{"depositId": params.DepositID, "owner": formatOwner(newOwner)})
	return "ok"
}

func (s *Server) handleHodlGetDeposit(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlDepositLookupParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	id, err := parseDepositID(params.DepositID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	info, err := s.node.DepositInfo(id)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, depositInfoResult(info))
	return "ok"
}

func (s *Server) handleHodlListDeposits(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlOwnerParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	infos, err := s.node.DepositsByOwner(owner)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	results := make([]hodlDepositResult, 0, len(infos))
	for _, info := range infos {
		results = append(results, depositInfoResult(info))
	}
	writeResult(w, req.ID, results)
	return "ok"
}

func (s *Server) handleHodlGetPool(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlPoolParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	info, err := s.node.PoolInfo(strings.TrimSpace(params.Asset))
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, hodlPoolResult{
		Asset:             info.Asset,
		DepositsSum:       formatBig(info.DepositsSum),
		HoldBonusesSum:    formatBig(info.HoldBonusesSum),
		CommitBonusesSum:  formatBig(info.CommitBonusesSum),
		TotalHoldPoints:   formatBig(info.TotalHoldPoints),
		TotalCommitPoints: formatBig(info.TotalCommitPoints),
	})
	return "ok"
}

func (s *Server) handleHodlGetBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params hodlBalanceParams
	if !unmarshalSingleParam(w, req, &params) {
		return "invalid_params"
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return "invalid_params"
	}
	balance, err := s.node.BalanceOf(strings.TrimSpace(params.Asset), owner)
	if err != nil {
		return s.writeEngineError(w, req, err)
	}
	writeResult(w, req.ID, hodlBalanceResult{
		Owner:   formatOwner(owner),
		Asset:   strings.TrimSpace(params.Asset),
		Balance: formatBig(balance),
	})
	return "ok"
}
