package parsers

import (
	"strings"
	"testing"

	"github.com/username/chainledger/src/models"
)

func TestNativeParserParsesAndSkipsErrored(t *testing.T) {
	payload := `{
		"status": "1",
		"message": "OK",
		"result": [
			{"blockNumber":"1000","timeStamp":"1700000000","hash":"0xAA","from":"0xFROM","to":"0xTO","value":"1000000000000000000","isError":"0"},
			{"blockNumber":"1001","timeStamp":"1700000100","hash":"0xBB","from":"0xFROM","to":"0xTO","value":"5","isError":"1"}
		]
	}`
	parser, err := GetParser(models.KindNative)
	if err != nil {
		t.Fatalf("GetParser failed: %v", err)
	}
	transfers, err := parser.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("len(transfers) = %d, want 1 (errored row skipped)", len(transfers))
	}
	tr := transfers[0]
	if tr.Hash != "0xAA" || tr.From != "0xfrom" || tr.To != "0xto" {
		t.Errorf("transfer = %+v, want lowercased addresses on hash 0xAA", tr)
	}
	if tr.TimeStamp != 1700000000 {
		t.Errorf("TimeStamp = %d, want 1700000000", tr.TimeStamp)
	}
	if tr.TokenDecimal != "18" || tr.Kind != models.KindNative {
		t.Errorf("decimals/kind = %s/%s, want 18/native", tr.TokenDecimal, tr.Kind)
	}
}

func TestERC20ParserKeepsContractFields(t *testing.T) {
	payload := `{
		"status": "1",
		"message": "OK",
		"result": [
			{"blockNumber":"1000","timeStamp":"1700000000","hash":"0xAA","from":"0xF","to":"0xT",
			 "value":"1000000","contractAddress":"0xCONTRACT","tokenSymbol":"USDC","tokenDecimal":"6"}
		]
	}`
	parser, _ := GetParser(models.KindERC20)
	transfers, err := parser.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tr := transfers[0]
	if tr.ContractAddress != "0xcontract" || tr.TokenSymbol != "USDC" || tr.TokenDecimal != "6" {
		t.Errorf("token fields = %s/%s/%s", tr.ContractAddress, tr.TokenSymbol, tr.TokenDecimal)
	}
}

func TestERC1155ParserUsesTokenValue(t *testing.T) {
	payload := `{
		"status": "1",
		"message": "OK",
		"result": [
			{"blockNumber":"1000","timeStamp":"1700000000","hash":"0xAA","from":"0xF","to":"0xT",
			 "tokenValue":"3","contractAddress":"0xC","tokenSymbol":"NFT"}
		]
	}`
	parser, _ := GetParser(models.KindERC1155)
	transfers, err := parser.Parse(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tr := transfers[0]
	if tr.Value != "3" {
		t.Errorf("Value = %s, want tokenValue 3", tr.Value)
	}
	if tr.TokenDecimal != "0" {
		t.Errorf("TokenDecimal = %s, want 0", tr.TokenDecimal)
	}
}

func TestParserNoTransactionsFoundIsEmpty(t *testing.T) {
	payload := `{"status":"0","message":"No transactions found","result":[]}`
	for _, kind := range []models.TransferKind{
		models.KindNative, models.KindInternal, models.KindERC20, models.KindERC1155,
	} {
		parser, err := GetParser(kind)
		if err != nil {
			t.Fatalf("GetParser(%s) failed: %v", kind, err)
		}
		transfers, err := parser.Parse(strings.NewReader(payload))
		if err != nil {
			t.Errorf("Parse(%s) failed on empty result: %v", kind, err)
		}
		if len(transfers) != 0 {
			t.Errorf("Parse(%s) = %d transfers, want 0", kind, len(transfers))
		}
	}
}

func TestParserErrorStatus(t *testing.T) {
	payload := `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`
	parser, _ := GetParser(models.KindNative)
	if _, err := parser.Parse(strings.NewReader(payload)); err == nil {
		t.Fatal("expected error for NOTOK status")
	}
}

func TestGetParserUnknownKind(t *testing.T) {
	if _, err := GetParser(models.TransferKind("bogus")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
