// Package oauth implements the OAuth 2.1 authorization server that MCP
// clients talk to.
//
// The server supports dynamic client registration, the authorization code
// grant with mandatory PKCE (S256), refresh token rotation and token
// revocation. Upstream authentication happens elsewhere: the HTTP layer
// parses the MCP client's request with ParseAuthRequest, sends the user
// through Notion, and closes the transaction with CompleteAuthorization.
//
// Grants carry an opaque props bag set at completion time. Props are
// encrypted at rest when an encryption key is configured and are handed to
// the MCP endpoint through the request context by ValidateToken.
//
// All state is in memory. Restarting the process invalidates every issued
// token and registered client.
package oauth
