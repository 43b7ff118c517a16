package rpc

import (
	"encoding/json"
	"testing"
)

// FuzzRPCRequestUnmarshal tests that arbitrary JSON does not panic
// when parsed as a JSON-RPC 2.0 request.
func FuzzRPCRequestUnmarshal(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","method":"registry_getInfo","params":null,"id":1}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"token_ownerOf","params":{"token_id":3},"id":"test"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"method":"","params":[]}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"token_mint","params":{"payload":{},"auth":{"nonce":1}},"id":999}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		_ = req.Method
		_ = req.ID
		_ = hasParams(&req)
	})
}

// FuzzSignedParams tests that arbitrary params never panic the signed
// envelope decoder.
func FuzzSignedParams(f *testing.F) {
	f.Add([]byte(`{"payload":{"recipient":"ais1"},"auth":{"pubkey":"02","nonce":1,"signature":"00"}}`))
	f.Add([]byte(`{"payload":null}`))
	f.Add([]byte(`[]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var sp SignedParams
		req := &Request{JSONRPC: "2.0", Method: "token_mint", Params: data}
		_ = parseParams(req, &sp)
	})
}
