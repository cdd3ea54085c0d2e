package processors

import (
	"testing"
	"time"

	"github.com/username/chainledger/src/models"
)

func TestMergeTransferDeduplicates(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{}, NewAccountRegistry())

	a := nativeTransfer("0x1", me, exchange, "5", 100)
	// Same economic transfer reported by another upstream list.
	duplicate := a
	duplicate.Kind = models.KindInternal

	list := n.MergeTransfer(nil, a)
	list = n.MergeTransfer(list, duplicate)
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1 after merging duplicate", len(list))
	}

	// The merge is idempotent, not order-dependent.
	list = n.MergeTransfer(list, a)
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1 after re-merging", len(list))
	}

	other := nativeTransfer("0x1", exchange, me, "5", 100)
	list = n.MergeTransfer(list, other)
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2 for a genuinely distinct transfer", len(list))
	}
}

func TestMergeTransferDropsZeroValue(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{}, NewAccountRegistry())
	for _, value := range []string{"", "0"} {
		tr := nativeTransfer("0x1", me, exchange, value, 100)
		if got := n.MergeTransfer(nil, tr); len(got) != 0 {
			t.Errorf("value %q survived merge, want dropped", value)
		}
	}
}

func TestFilterDateWindow(t *testing.T) {
	registry := NewAccountRegistry()
	n := NewNormalizer(NormalizerConfig{
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}, registry)

	inside := nativeTransfer("0x1", me, exchange, "1", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Unix())
	before := nativeTransfer("0x2", me, exchange, "1", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).Unix())
	after := nativeTransfer("0x3", me, exchange, "1", time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC).Unix())

	if !n.Filter(inside) {
		t.Error("in-window transfer filtered out")
	}
	if n.Filter(before) || n.Filter(after) {
		t.Error("out-of-window transfer passed the filter")
	}
}

func TestFilterHiddenSender(t *testing.T) {
	registry := NewAccountRegistry()
	registry.Hide(stranger)
	n := NewNormalizer(NormalizerConfig{}, registry)

	if n.Filter(nativeTransfer("0x1", stranger, me, "1", 100)) {
		t.Error("transfer from hidden sender passed the filter")
	}
	if !n.Filter(nativeTransfer("0x2", me, stranger, "1", 100)) {
		t.Error("transfer to hidden receiver should pass (only senders hide)")
	}
}

func TestFilterIgnoredSymbolsAndContracts(t *testing.T) {
	registry := NewAccountRegistry()
	n := NewNormalizer(NormalizerConfig{
		IgnoredSymbols: map[string]bool{"SPAM": true, wethCtr: true},
		AllowedContracts: map[string]ContractInfo{
			usdcCtr: {Symbol: "USDC"},
			wethCtr: {Symbol: "WETH"},
		},
	}, registry)

	if n.Filter(tokenTransfer("0x1", exchange, me, "1", usdcCtr, "SPAM", 100)) {
		t.Error("ignored symbol passed the filter")
	}
	if n.Filter(tokenTransfer("0x2", exchange, me, "1", wethCtr, "WETH", 100)) {
		t.Error("ignored contract address passed the filter")
	}
	if !n.Filter(tokenTransfer("0x3", exchange, me, "1", usdcCtr, "USDC", 100)) {
		t.Error("allow-listed contract filtered out")
	}
}

func TestFilterAllowListWithTrackedContractException(t *testing.T) {
	registry := NewAccountRegistry()
	registry.MarkAdded(wethCtr, "my contract wallet")
	n := NewNormalizer(NormalizerConfig{
		AllowedContracts: map[string]ContractInfo{usdcCtr: {Symbol: "USDC"}},
	}, registry)

	if n.Filter(tokenTransfer("0x1", exchange, me, "1", stranger, "RANDOM", 100)) {
		t.Error("non-allow-listed contract passed the filter")
	}
	if !n.Filter(tokenTransfer("0x2", exchange, me, "1", wethCtr, "MINE", 100)) {
		t.Error("tracked contract address should bypass the allow-list")
	}
}

func TestResolveSymbol(t *testing.T) {
	registry := NewAccountRegistry()
	n := NewNormalizer(NormalizerConfig{
		AllowedContracts: map[string]ContractInfo{usdcCtr: {Symbol: "USDC"}},
	}, registry)

	tests := []struct {
		name     string
		transfer models.Transfer
		want     string
	}{
		{
			name:     "native transfer resolves to native symbol",
			transfer: nativeTransfer("0x1", me, exchange, "1", 100),
			want:     "ETH",
		},
		{
			name:     "allow-listed contract overrides raw symbol",
			transfer: tokenTransfer("0x2", me, exchange, "1", usdcCtr, "USD-COIN", 100),
			want:     "USDC",
		},
		{
			name:     "unknown contract falls back to raw symbol",
			transfer: tokenTransfer("0x3", me, exchange, "1", stranger, "RAW", 100),
			want:     "RAW",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := n.ResolveSymbol(tc.transfer, "ETH"); got != tc.want {
				t.Errorf("ResolveSymbol = %q, want %q", got, tc.want)
			}
		})
	}
}
