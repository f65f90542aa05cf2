package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"credchain/crypto"
	"credchain/native/credential"
	"credchain/native/vesting"
)

type mintParams struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
}

type tokenCallParams struct {
	Caller  string `json:"caller"`
	TokenID uint64 `json:"tokenId"`
}

type approveParams struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
	TokenID uint64 `json:"tokenId"`
}

type transferParams struct {
	Caller  string `json:"caller"`
	To      string `json:"to"`
	TokenID uint64 `json:"tokenId"`
}

type transferabilityParams struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

type setAdminParams struct {
	Caller string `json:"caller"`
	Next   string `json:"next"`
}

type scheduleParams struct {
	Caller          string `json:"caller"`
	TokenID         uint64 `json:"tokenId"`
	DurationSeconds uint64 `json:"durationSeconds"`
}

type pauseParams struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type tokenQueryParams struct {
	TokenID uint64 `json:"tokenId"`
}

type ownerQueryParams struct {
	Owner string `json:"owner"`
}

type mintResult struct {
	TokenID uint64 `json:"tokenId"`
}

type releaseResult struct {
	TokenID uint64 `json:"tokenId"`
	Amount  string `json:"amount"`
}

type scheduleResult struct {
	TokenID  uint64  `json:"tokenId"`
	Deadline *uint64 `json:"deadline"`
}

type boolResult struct {
	Value bool `json:"value"`
}

type ownerResult struct {
	TokenID uint64 `json:"tokenId"`
	Owner   string `json:"owner"`
}

type tokensResult struct {
	Owner    string   `json:"owner"`
	TokenIDs []uint64 `json:"tokenIds"`
}

func decodeParams(raw json.RawMessage, out interface{}) *RPCError {
	if len(raw) == 0 {
		return &RPCError{Code: codeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "malformed params: " + err.Error()}
	}
	return nil
}

func decodeAddr(field, value string) ([20]byte, *RPCError) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("%s: %v", field, err)}
	}
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out, nil
}

func encodeAddr(addr [20]byte) string {
	encoded, err := crypto.NewAddress(crypto.CredPrefix, addr[:])
	if err != nil {
		return ""
	}
	return encoded.String()
}

// domainError maps module errors onto JSON-RPC error objects.
func domainError(err error) *RPCError {
	switch {
	case errors.Is(err, credential.ErrUnauthorized), errors.Is(err, vesting.ErrUnauthorized):
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, credential.ErrInvalidTarget),
		errors.Is(err, credential.ErrNotFound),
		errors.Is(err, credential.ErrAlreadyBurnt),
		errors.Is(err, credential.ErrNotTransferable),
		errors.Is(err, vesting.ErrScheduleNotSet),
		errors.Is(err, vesting.ErrNotYetVested):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}

func (s *Server) handleMint(params json.RawMessage) (interface{}, *RPCError) {
	var p mintParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := decodeAddr("target", p.Target)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, err := s.ledger.Mint(caller, target)
	if err != nil {
		return nil, domainError(err)
	}
	return mintResult{TokenID: id}, nil
}

func (s *Server) handleBurn(params json.RawMessage) (interface{}, *RPCError) {
	var p tokenCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Burn(caller, p.TokenID); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) handleApprove(params json.RawMessage) (interface{}, *RPCError) {
	var p approveParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var spender [20]byte
	if p.Spender != "" {
		spender, rpcErr = decodeAddr("spender", p.Spender)
		if rpcErr != nil {
			return nil, rpcErr
		}
	}
	if err := s.registry.Approve(caller, spender, p.TokenID); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) handleTransfer(params json.RawMessage) (interface{}, *RPCError) {
	var p transferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := decodeAddr("to", p.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.registry.Transfer(caller, to, p.TokenID); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) handleSetTransferability(params json.RawMessage) (interface{}, *RPCError) {
	var p transferabilityParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetTransferability(caller, p.Enabled); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: p.Enabled}, nil
}

func (s *Server) handleSetAdmin(params json.RawMessage) (interface{}, *RPCError) {
	var p setAdminParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	next, rpcErr := decodeAddr("next", p.Next)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.SetAdmin(caller, next); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) handleSetVestingSchedule(params json.RawMessage) (interface{}, *RPCError) {
	var p scheduleParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetSchedule(caller, p.TokenID, p.DurationSeconds); err != nil {
		return nil, domainError(err)
	}
	deadline, ok := s.engine.Schedule(p.TokenID)
	if !ok {
		return scheduleResult{TokenID: p.TokenID}, nil
	}
	return scheduleResult{TokenID: p.TokenID, Deadline: &deadline}, nil
}

func (s *Server) handleReleaseVested(params json.RawMessage) (interface{}, *RPCError) {
	var p tokenCallParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.engine.ReleaseVested(caller, p.TokenID)
	if err != nil {
		return nil, domainError(err)
	}
	return releaseResult{TokenID: p.TokenID, Amount: amount.String()}, nil
}

func (s *Server) handleIsBurned(params json.RawMessage) (interface{}, *RPCError) {
	var p tokenQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return boolResult{Value: s.ledger.IsBurnt(p.TokenID)}, nil
}

func (s *Server) handleGetTransferability(json.RawMessage) (interface{}, *RPCError) {
	return boolResult{Value: s.ledger.Transferability()}, nil
}

func (s *Server) handleGetVestingSchedule(params json.RawMessage) (interface{}, *RPCError) {
	var p tokenQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	deadline, ok := s.engine.Schedule(p.TokenID)
	if !ok {
		return scheduleResult{TokenID: p.TokenID}, nil
	}
	return scheduleResult{TokenID: p.TokenID, Deadline: &deadline}, nil
}

func (s *Server) handleOwnerOf(params json.RawMessage) (interface{}, *RPCError) {
	var p tokenQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, err := s.registry.OwnerOf(p.TokenID)
	if err != nil {
		return nil, domainError(err)
	}
	return ownerResult{TokenID: p.TokenID, Owner: encodeAddr(owner)}, nil
}

func (s *Server) handleTokensOf(params json.RawMessage) (interface{}, *RPCError) {
	var p ownerQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := decodeAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ids, err := s.registry.TokensOf(owner)
	if err != nil {
		return nil, domainError(err)
	}
	return tokensResult{Owner: encodeAddr(owner), TokenIDs: ids}, nil
}

func (s *Server) handleSetPaused(params json.RawMessage) (interface{}, *RPCError) {
	var p pauseParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	switch p.Module {
	case credential.ModuleName, vesting.ModuleName:
	default:
		return nil, &RPCError{Code: codeInvalidParams, Message: "unknown module " + p.Module}
	}
	if err := s.ledger.SetPaused(caller, p.Module, p.Paused); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: p.Paused}, nil
}
