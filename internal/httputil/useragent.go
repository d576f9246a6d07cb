// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import "fmt"

// ProductToken identifies this client in User-Agent headers.
const ProductToken = "dovmed/0.1"

// UserAgent returns the User-Agent value for outgoing requests. NCBI
// asks bulk clients to supply a contact address; when one is given it
// is appended as a comment after the product token.
func UserAgent(contact string) string {
	if contact == "" {
		return ProductToken
	}
	return fmt.Sprintf("%s (%s)", ProductToken, contact)
}
