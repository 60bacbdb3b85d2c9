// Package cookie signs and verifies cookie values and builds Set-Cookie headers.
//
// A signed value has the form:
//
//	base64(payload) "." base64(HMAC-SHA256(secret, base64(payload)))
//
// The payload part uses standard padded base64, the signature part is
// unpadded. Verification splits at the last ".", recomputes the MAC over the
// encoded payload and compares with hmac.Equal.
//
// # Basic Usage
//
//	m := cookie.New(
//		cookie.WithSecret("your-32+-byte-secret-key-here!!"),
//		cookie.WithSecure(true),
//	)
//
//	signed, err := m.Sign([]byte(`{"user_id":"42"}`))
//	header := m.Header("__session", signed) // value for a Set-Cookie header
//
//	payload, err := m.Read(r, "__session") // ErrNotFound, ErrBadSig
//
// # Read Your Writes
//
// Merge copies a Set-Cookie header value into the Cookie header of an inbound
// request, so code that runs later in the same request sees the new value:
//
//	err := cookie.Merge(r, header)
package cookie
