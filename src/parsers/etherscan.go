// src/parsers/etherscan.go
package parsers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/chainledger/src/models"
)

// listResponse is the etherscan account-module envelope. status "0" with a
// "No transactions found" message is an empty result, not an error.
type listResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Result  json.RawMessage   `json:"result"`
	rows    []etherscanTxnRow `json:"-"`
}

type etherscanTxnRow struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	TokenValue      string `json:"tokenValue"` // ERC-1155 quantity
	IsError         string `json:"isError"`
}

func decodeList(r io.Reader) (*listResponse, error) {
	var resp listResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode etherscan response: %w", err)
	}
	if resp.Status != "1" {
		if strings.Contains(strings.ToLower(resp.Message), "no transactions found") {
			return &resp, nil
		}
		return nil, fmt.Errorf("etherscan returned status %s: %s", resp.Status, resp.Message)
	}
	if err := json.Unmarshal(resp.Result, &resp.rows); err != nil {
		return nil, fmt.Errorf("failed to decode etherscan result rows: %w", err)
	}
	return &resp, nil
}

func parseTimestamp(s string) (int64, error) {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeStamp %q: %w", s, err)
	}
	return ts, nil
}

// TransferParser turns one etherscan list payload into canonical transfers.
type TransferParser interface {
	Parse(r io.Reader) ([]models.Transfer, error)
}

// GetParser returns the parser for one of the four etherscan transfer list
// kinds.
func GetParser(kind models.TransferKind) (TransferParser, error) {
	switch kind {
	case models.KindNative:
		return nativeParser{}, nil
	case models.KindInternal:
		return internalParser{}, nil
	case models.KindERC20:
		return erc20Parser{}, nil
	case models.KindERC1155:
		return erc1155Parser{}, nil
	default:
		return nil, fmt.Errorf("no parser available for transfer kind: %s", kind)
	}
}

type nativeParser struct{}

func (nativeParser) Parse(r io.Reader) ([]models.Transfer, error) {
	resp, err := decodeList(r)
	if err != nil {
		return nil, err
	}
	var out []models.Transfer
	for _, row := range resp.rows {
		if row.IsError == "1" {
			continue // reverted txs still burn gas but move no value
		}
		ts, err := parseTimestamp(row.TimeStamp)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Transfer{
			Hash:         row.Hash,
			BlockNumber:  row.BlockNumber,
			TimeStamp:    ts,
			From:         strings.ToLower(row.From),
			To:           strings.ToLower(row.To),
			Value:        row.Value,
			TokenDecimal: "18",
			Kind:         models.KindNative,
		})
	}
	return out, nil
}

type internalParser struct{}

func (internalParser) Parse(r io.Reader) ([]models.Transfer, error) {
	resp, err := decodeList(r)
	if err != nil {
		return nil, err
	}
	var out []models.Transfer
	for _, row := range resp.rows {
		if row.IsError == "1" {
			continue
		}
		ts, err := parseTimestamp(row.TimeStamp)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Transfer{
			Hash:         row.Hash,
			BlockNumber:  row.BlockNumber,
			TimeStamp:    ts,
			From:         strings.ToLower(row.From),
			To:           strings.ToLower(row.To),
			Value:        row.Value,
			TokenDecimal: "18",
			Kind:         models.KindInternal,
		})
	}
	return out, nil
}

type erc20Parser struct{}

func (erc20Parser) Parse(r io.Reader) ([]models.Transfer, error) {
	resp, err := decodeList(r)
	if err != nil {
		return nil, err
	}
	var out []models.Transfer
	for _, row := range resp.rows {
		ts, err := parseTimestamp(row.TimeStamp)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Transfer{
			Hash:            row.Hash,
			BlockNumber:     row.BlockNumber,
			TimeStamp:       ts,
			From:            strings.ToLower(row.From),
			To:              strings.ToLower(row.To),
			Value:           row.Value,
			ContractAddress: strings.ToLower(row.ContractAddress),
			TokenSymbol:     row.TokenSymbol,
			TokenDecimal:    row.TokenDecimal,
			Kind:            models.KindERC20,
		})
	}
	return out, nil
}

type erc1155Parser struct{}

func (erc1155Parser) Parse(r io.Reader) ([]models.Transfer, error) {
	resp, err := decodeList(r)
	if err != nil {
		return nil, err
	}
	var out []models.Transfer
	for _, row := range resp.rows {
		ts, err := parseTimestamp(row.TimeStamp)
		if err != nil {
			return nil, err
		}
		// 1155 rows report quantity as tokenValue and carry no decimals.
		value := row.TokenValue
		if value == "" {
			value = row.Value
		}
		decimals := row.TokenDecimal
		if decimals == "" {
			decimals = "0"
		}
		out = append(out, models.Transfer{
			Hash:            row.Hash,
			BlockNumber:     row.BlockNumber,
			TimeStamp:       ts,
			From:            strings.ToLower(row.From),
			To:              strings.ToLower(row.To),
			Value:           value,
			ContractAddress: strings.ToLower(row.ContractAddress),
			TokenSymbol:     row.TokenSymbol,
			TokenDecimal:    decimals,
			Kind:            models.KindERC1155,
		})
	}
	return out, nil
}
