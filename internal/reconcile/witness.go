package reconcile

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/klingon-exchange/bridgesync/internal/backend"
	"github.com/klingon-exchange/bridgesync/pkg/helpers"
)

// validLeafScript reports whether the hex string parses as a bitcoin
// script. Leaf hexes from detail blobs are validated before any
// witness matching so that garbage data never produces a false match.
func validLeafScript(leafHex string) bool {
	script, err := helpers.HexToBytes(leafHex)
	if err != nil || len(script) == 0 {
		return false
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
	}
	return tokenizer.Err() == nil
}

// txSpendsLeaf reports whether any input of the transaction spends via
// the given leaf script: a script-path spend carries the leaf script as
// one of its witness stack items.
func txSpendsLeaf(tx *backend.Transaction, leafHex string) bool {
	leafHex = strings.TrimPrefix(strings.ToLower(leafHex), "0x")
	for _, in := range tx.Inputs {
		for _, item := range in.Witness {
			if strings.ToLower(item) == leafHex {
				return true
			}
		}
	}
	return false
}

// findLeafSpend returns the id of the first transaction spending via
// the leaf.
func findLeafSpend(txs []backend.Transaction, leafHex string) (string, bool) {
	for i := range txs {
		if txSpendsLeaf(&txs[i], leafHex) {
			return txs[i].TxID, true
		}
	}
	return "", false
}

// validLockupAddress reports whether the string is a parseable bitcoin
// address for the network.
func validLockupAddress(addr string, params *chaincfg.Params) bool {
	if addr == "" || params == nil {
		return false
	}
	_, err := btcutil.DecodeAddress(addr, params)
	return err == nil
}
